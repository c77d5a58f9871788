package hardware

import (
	"sync"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/seat"
)

// SimConfig configures the simulated board. Raw holds the initial sensor
// readings; the seat cools back towards them when its heater is off.
type SimConfig struct {
	Raw [2]int
	// HeatRate is the warming rate in °C per second with both stages on.
	HeatRate float64
	// CoolRate is the cooling rate in °C per second towards ambient.
	CoolRate float64
}

type simSeat struct {
	ambient float64
	temp    float64
	outputs [numOutputs]bool
	presses []bool
}

// Sim is a board with a first-order thermal model and injectable button
// presses.
type Sim struct {
	mu    sync.Mutex
	cfg   SimConfig
	now   func() time.Time
	last  time.Time
	seats [2]simSeat
}

// NewSim returns a simulated board on the wall clock.
func NewSim(cfg SimConfig) *Sim {
	return newSim(cfg, time.Now)
}

func newSim(cfg SimConfig, now func() time.Time) *Sim {
	s := &Sim{cfg: cfg, now: now, last: now()}
	for _, id := range seat.All {
		t := float64(seat.ScaleRaw(cfg.Raw[id]))
		s.seats[id] = simSeat{ambient: t, temp: t}
	}
	return s
}

// Press queues one press and release of the button of id.
func (s *Sim) Press(id seat.ID) {
	if !id.Valid() {
		return
	}

	s.mu.Lock()
	s.seats[id].presses = append(s.seats[id].presses, true, false)
	s.mu.Unlock()
}

// Pressed consumes the next queued button level.
func (s *Sim) Pressed(id seat.ID) (bool, error) {
	if !id.Valid() {
		return false, errors.New().WithData(errors.ErrInvalidSeat, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.seats[id]
	if len(st.presses) == 0 {
		return false, nil
	}

	v := st.presses[0]
	st.presses = st.presses[1:]

	return v, nil
}

// ReadRaw advances the thermal model and returns the converted reading.
func (s *Sim) ReadRaw(id seat.ID) (int, error) {
	if !id.Valid() {
		return 0, errors.New().WithData(errors.ErrInvalidSeat, int(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()

	return seat.RawFor(seat.Temperature(s.seats[id].temp)), nil
}

// Set records the output level; heater lines feed the thermal model.
func (s *Sim) Set(id seat.ID, out Output, on bool) error {
	if !id.Valid() || out < HeaterA || out >= numOutputs {
		return errors.New().WithData(errors.ErrInvalidArgument, int(out))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	s.seats[id].outputs[out] = on

	return nil
}

// Output returns the last level written to out of id.
func (s *Sim) Output(id seat.ID, out Output) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[id].outputs[out]
}

// Close drives every output low.
func (s *Sim) Close() error {
	return ResetOutputs(s)
}

func (s *Sim) advance() {
	now := s.now()
	dt := now.Sub(s.last).Seconds()
	s.last = now
	if dt <= 0 {
		return
	}

	for i := range s.seats {
		st := &s.seats[i]

		power := 0.0
		if st.outputs[HeaterA] {
			power += 0.25
		}
		if st.outputs[HeaterB] {
			power += 0.5
		}
		if st.outputs[HeaterA] && st.outputs[HeaterB] {
			power = 1
		}

		if power > 0 {
			st.temp += power * s.cfg.HeatRate * dt
		} else if st.temp > st.ambient {
			st.temp -= s.cfg.CoolRate * dt
			if st.temp < st.ambient {
				st.temp = st.ambient
			}
		}

		if st.temp > seat.MaxScaleCelsius {
			st.temp = seat.MaxScaleCelsius
		}
	}
}
