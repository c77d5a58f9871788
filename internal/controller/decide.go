package controller

import "codeberg.org/mutker/seatctl/internal/seat"

// Decide maps the gap between requested and current temperature onto a heater
// level. The first matching rung wins. When none matches, changed is false and
// the seat keeps its present level.
func Decide(requested, current seat.Temperature) (seat.Intensity, bool) {
	delta := int(requested) - int(current)

	switch {
	case delta >= 10:
		return seat.High, true
	case delta >= 5:
		return seat.Medium, true
	case delta > 2:
		return seat.Low, true
	case -delta <= 3:
		return seat.Off, true
	default:
		return 0, false
	}
}
