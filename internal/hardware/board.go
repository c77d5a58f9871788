package hardware

import (
	"codeberg.org/mutker/seatctl/internal/errors"
)

// Backend names.
const (
	BackendGPIO = "gpio"
	BackendSim  = "sim"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	GPIO    GPIOConfig
	ADC     ADCConfig
	Sim     SimConfig
}

type board struct {
	*GPIO
	*ADC
}

// Open builds the board for cfg.Backend.
func Open(cfg Config) (Board, error) {
	switch cfg.Backend {
	case BackendSim:
		return NewSim(cfg.Sim), nil
	case BackendGPIO:
		adc, err := NewADC(cfg.ADC)
		if err != nil {
			return nil, err
		}

		gpio, err := NewGPIO(cfg.GPIO)
		if err != nil {
			return nil, err
		}

		return board{GPIO: gpio, ADC: adc}, nil
	default:
		return nil, errors.New().WithData(errors.ErrInvalidBackend, cfg.Backend)
	}
}
