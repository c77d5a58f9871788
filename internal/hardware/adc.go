package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/seat"
)

// DefaultIIORoot is where the kernel exposes industrial I/O devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// ADCConfig selects the converter device and the channel of each seat sensor.
type ADCConfig struct {
	Root     string
	Device   string
	Channels [2]int
}

// ADC reads seat sensors from the IIO sysfs interface.
type ADC struct {
	paths [2]string
}

// NewADC checks that both channel files exist.
func NewADC(cfg ADCConfig) (*ADC, error) {
	root := cfg.Root
	if root == "" {
		root = DefaultIIORoot
	}

	a := &ADC{}
	for _, id := range seat.All {
		path := filepath.Join(root, cfg.Device, fmt.Sprintf("in_voltage%d_raw", cfg.Channels[id]))
		if _, err := os.Stat(path); err != nil {
			return nil, errors.New().Wrap(errors.ErrHardwareInit, err).
				WithMessage(fmt.Sprintf("ADC channel for %s seat not found: %s", id, path))
		}
		a.paths[id] = path
	}

	return a, nil
}

// ReadRaw returns the raw conversion of the sensor of id.
func (a *ADC) ReadRaw(id seat.ID) (int, error) {
	if !id.Valid() {
		return 0, errors.New().WithData(errors.ErrInvalidSeat, int(id))
	}

	data, err := os.ReadFile(a.paths[id])
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrSensorRead, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrSensorRead, err)
	}

	return value, nil
}
