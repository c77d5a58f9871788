//go:build linux

package hardware

import (
	"fmt"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/seat"
	"github.com/warthog618/go-gpiocdev"
)

// GPIO drives buttons and outputs through the GPIO character device.
type GPIO struct {
	chip    *gpiocdev.Chip
	buttons [2]*gpiocdev.Line
	outputs [2][numOutputs]*gpiocdev.Line
}

// NewGPIO requests every configured line. Buttons are inputs with pull-up
// (pressed pulls the line low); outputs start low.
func NewGPIO(cfg GPIOConfig) (*GPIO, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer(cfg.Consumer))
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrHardwareInit, err).
			WithMessage(fmt.Sprintf("failed to open GPIO chip %s", cfg.Chip))
	}

	g := &GPIO{chip: chip}

	for _, id := range seat.All {
		lines := cfg.Seats[id]

		button, err := chip.RequestLine(lines.Button, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			g.release()
			return nil, errors.New().Wrap(errors.ErrHardwareInit, err).
				WithMessage(fmt.Sprintf("failed to request %s button line %d", id, lines.Button))
		}
		g.buttons[id] = button

		for out := HeaterA; out < numOutputs; out++ {
			offset := lines.output(out)
			line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
			if err != nil {
				g.release()
				return nil, errors.New().Wrap(errors.ErrHardwareInit, err).
					WithMessage(fmt.Sprintf("failed to request %s %s line %d", id, out, offset))
			}
			g.outputs[id][out] = line
		}
	}

	return g, nil
}

// Pressed reads the button of id. The line is active low.
func (g *GPIO) Pressed(id seat.ID) (bool, error) {
	if !id.Valid() {
		return false, errors.New().WithData(errors.ErrInvalidSeat, int(id))
	}

	v, err := g.buttons[id].Value()
	if err != nil {
		return false, errors.New().Wrap(errors.ErrButtonRead, err)
	}

	return v == 0, nil
}

// Set drives one output line of id.
func (g *GPIO) Set(id seat.ID, out Output, on bool) error {
	if !id.Valid() || out < HeaterA || out >= numOutputs {
		return errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("%s/%s", id, out))
	}

	v := 0
	if on {
		v = 1
	}

	if err := g.outputs[id][out].SetValue(v); err != nil {
		return errors.New().Wrap(errors.ErrOutputWrite, err).
			WithMessage(fmt.Sprintf("failed to set %s %s", id, out))
	}

	return nil
}

// Close drives every output low and releases the lines.
func (g *GPIO) Close() error {
	err := ResetOutputs(g)
	if rerr := g.release(); err == nil {
		err = rerr
	}
	return err
}

func (g *GPIO) release() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for id := range g.outputs {
		for out := range g.outputs[id] {
			if l := g.outputs[id][out]; l != nil {
				keep(l.Close())
				g.outputs[id][out] = nil
			}
		}
		if b := g.buttons[id]; b != nil {
			keep(b.Close())
			g.buttons[id] = nil
		}
	}
	if g.chip != nil {
		keep(g.chip.Close())
		g.chip = nil
	}

	if first != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, first)
	}
	return nil
}
