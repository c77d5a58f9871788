package hardware_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/seat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChannel(t *testing.T, dir string, channel int, value string) {
	t.Helper()

	path := filepath.Join(dir, "iio:device0", fmt.Sprintf("in_voltage%d_raw", channel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(value), 0o644))
}

func TestADCReadsSysfs(t *testing.T) {
	root := t.TempDir()
	writeChannel(t, root, 3, "1638\n")
	writeChannel(t, root, 4, "455")

	adc, err := hardware.NewADC(hardware.ADCConfig{
		Root:     root,
		Device:   "iio:device0",
		Channels: [2]int{3, 4},
	})
	require.NoError(t, err)

	raw, err := adc.ReadRaw(seat.Driver)
	require.NoError(t, err)
	assert.Equal(t, 1638, raw)

	raw, err = adc.ReadRaw(seat.Passenger)
	require.NoError(t, err)
	assert.Equal(t, 455, raw)
}

func TestADCMissingChannel(t *testing.T) {
	root := t.TempDir()
	writeChannel(t, root, 0, "0")

	_, err := hardware.NewADC(hardware.ADCConfig{
		Root:     root,
		Device:   "iio:device0",
		Channels: [2]int{0, 1},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrHardwareInit, errors.CodeOf(err))
}

func TestADCGarbage(t *testing.T) {
	root := t.TempDir()
	writeChannel(t, root, 0, "12")
	writeChannel(t, root, 1, "n/a")

	adc, err := hardware.NewADC(hardware.ADCConfig{
		Root:     root,
		Device:   "iio:device0",
		Channels: [2]int{0, 1},
	})
	require.NoError(t, err)

	_, err = adc.ReadRaw(seat.Passenger)
	require.Error(t, err)
	assert.Equal(t, errors.ErrSensorRead, errors.CodeOf(err))
}
