package seat

// Sensor scaling: a 12-bit reading spans 0..45 °C.
const (
	RawFullScale    = 4095
	MaxScaleCelsius = 45
)

// ScaleRaw converts a raw sensor reading into a calibrated temperature.
// Readings outside the converter range are clamped first.
func ScaleRaw(raw int) Temperature {
	if raw < 0 {
		raw = 0
	}
	if raw > RawFullScale {
		raw = RawFullScale
	}

	return Temperature(raw * MaxScaleCelsius / RawFullScale)
}

// RawFor returns the smallest raw reading that scales to t. It is the inverse
// used by the simulated backend and tests.
func RawFor(t Temperature) int {
	if t <= 0 {
		return 0
	}
	if t >= MaxScaleCelsius {
		return RawFullScale
	}

	return (int(t)*RawFullScale + MaxScaleCelsius - 1) / MaxScaleCelsius
}
