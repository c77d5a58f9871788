package hardware

import (
	"testing"
	"time"

	"codeberg.org/mutker/seatctl/internal/seat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimPressIsOnePulse(t *testing.T) {
	s := NewSim(SimConfig{})
	s.Press(seat.Passenger)

	levels := make([]bool, 0, 3)
	for i := 0; i < 3; i++ {
		v, err := s.Pressed(seat.Passenger)
		require.NoError(t, err)
		levels = append(levels, v)
	}

	assert.Equal(t, []bool{true, false, false}, levels)

	v, err := s.Pressed(seat.Driver)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestSimThermalModel(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	s := newSim(SimConfig{
		Raw:      [2]int{seat.RawFor(20), seat.RawFor(20)},
		HeatRate: 1,
		CoolRate: 0.5,
	}, clock)

	require.NoError(t, s.Set(seat.Driver, HeaterA, true))
	require.NoError(t, s.Set(seat.Driver, HeaterB, true))

	now = now.Add(10 * time.Second)

	raw, err := s.ReadRaw(seat.Driver)
	require.NoError(t, err)
	assert.Equal(t, seat.Temperature(30), seat.ScaleRaw(raw))

	raw, err = s.ReadRaw(seat.Passenger)
	require.NoError(t, err)
	assert.Equal(t, seat.Temperature(20), seat.ScaleRaw(raw), "unheated seat stays at ambient")

	require.NoError(t, s.Close())
	assert.False(t, s.Output(seat.Driver, HeaterA))

	now = now.Add(100 * time.Second)
	raw, err = s.ReadRaw(seat.Driver)
	require.NoError(t, err)
	assert.Equal(t, seat.Temperature(20), seat.ScaleRaw(raw), "cooling stops at ambient")
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "can"})
	assert.Error(t, err)

	b, err := Open(Config{Backend: BackendSim})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestResetOutputsDrivesAllLow(t *testing.T) {
	f := NewFake([2]int{})
	require.NoError(t, f.Set(seat.Driver, HeaterA, true))
	require.NoError(t, f.Set(seat.Passenger, FaultIndicator, true))

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)

	for _, id := range seat.All {
		for out := HeaterA; out < numOutputs; out++ {
			assert.False(t, f.Output(id, out), "%s %s", id, out)
		}
	}
}
