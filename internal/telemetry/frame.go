package telemetry

import (
	"io"
	"strconv"
	"time"

	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/timing"
)

const (
	clearScreen = "\033[2J"
	cursorHome  = "\033[H"

	stateGap = "                 "
	tempGap  = "                   "
)

// frameWriter collects the first write error so the rendering code stays linear.
type frameWriter struct {
	w   io.Writer
	err error
}

func (f *frameWriter) str(s string) {
	if f.err == nil {
		_, f.err = io.WriteString(f.w, s)
	}
}

func (f *frameWriter) num(n int64) {
	f.str(strconv.FormatInt(n, 10))
}

// Render writes one dashboard frame for snap.
func Render(w io.Writer, snap *Snapshot) error {
	f := &frameWriter{w: w}
	d, p := snap.Seats[seat.Driver], snap.Seats[seat.Passenger]

	f.str(clearScreen)
	f.str(cursorHome)
	f.str("\t\tDriver Seat ")
	f.str("\t  Passenger Seat ")

	f.str("\r\n\nHEATER STATE:       ")
	f.str(d.Intensity.String())
	f.str(stateGap)
	f.str(p.Intensity.String())

	f.str("\r\n\nRequired Temp:       ")
	f.num(int64(d.Requested))
	f.str(tempGap)
	f.num(int64(p.Requested))

	f.str("\r\n\nCurrent Temp:       ")
	f.num(int64(d.Current))
	f.str(tempGap)
	f.num(int64(p.Current))

	f.str("\r\n\n")
	for task := timing.Idle; task < timing.NumTasks; task++ {
		f.str(task.String())
		f.str(" execution time is ")
		f.num(int64(snap.Timing.Busy[task] / time.Millisecond))
		f.str(" msec \r\n")
	}

	f.str("CPU Load is ")
	f.num(int64(snap.Timing.Load))
	f.str("% \r\n")

	return f.err
}
