package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	seaterrors "codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	"codeberg.org/mutker/seatctl/internal/timing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingWriter records every Write call separately.
type countingWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (w *countingWriter) Writes() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.writes...)
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []*telemetry.Snapshot
	closed    bool
}

func (s *recordingSink) Record(_ context.Context, snap *telemetry.Snapshot) error {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func TestRenderFrame(t *testing.T) {
	snap := &telemetry.Snapshot{
		Seats: [2]seat.State{
			{ID: seat.Driver, Intensity: seat.High, Requested: 30, Current: 18},
			{ID: seat.Passenger, Intensity: seat.Off, Requested: 0, Current: 22},
		},
	}
	snap.Timing.Load = 15
	snap.Timing.Busy[timing.Idle] = 850 * time.Millisecond
	snap.Timing.Busy[timing.Decision] = 100 * time.Millisecond
	snap.Timing.Busy[timing.Telemetry] = 50*time.Millisecond + 900*time.Microsecond

	var buf bytes.Buffer
	require.NoError(t, telemetry.Render(&buf, snap))

	want := "\033[2J\033[H\t\tDriver Seat \t  Passenger Seat " +
		"\r\n\nHEATER STATE:       HIGH                 OFF" +
		"\r\n\nRequired Temp:       30                   0" +
		"\r\n\nCurrent Temp:       18                   22" +
		"\r\n\n" +
		"IdleTask execution time is 850 msec \r\n" +
		"DriverSeatHeatingLevelTask execution time is 0 msec \r\n" +
		"PassengerSeatHeatingLevelTask execution time is 0 msec \r\n" +
		"HeaterMonitorTask execution time is 100 msec \r\n" +
		"HeaterControlTask execution time is 0 msec \r\n" +
		"GetCurrentTempTask execution time is 0 msec \r\n" +
		"DashboardDisplayTask execution time is 50 msec \r\n" +
		"FailureHandleTask execution time is 0 msec \r\n" +
		"RunTimeMeasurementsTask execution time is 0 msec \r\n" +
		"CPU Load is 15% \r\n"

	assert.Equal(t, want, buf.String())
}

func newReporter(t *testing.T, out *countingWriter, sinks ...telemetry.Sink) (*telemetry.Reporter, seat.Seats, *signal.Hub) {
	t.Helper()

	seats := seat.NewSeats()
	hub := signal.NewHub()
	require.NoError(t, hub.Subscribe(signal.Telemetry, signal.IntensityUpdated))

	cfg := telemetry.Config{Output: telemetry.StdoutOutput, Interval: 10 * time.Millisecond}
	r, err := telemetry.NewReporter(cfg, out, seats, hub, timing.NewTable(), logger.Nop(), sinks...)
	require.NoError(t, err)

	return r, seats, hub
}

func TestReportWritesOneFramePerCall(t *testing.T) {
	out := &countingWriter{}
	sink := &recordingSink{}
	r, seats, _ := newReporter(t, out, sink)

	require.NoError(t, seats.Get(seat.Passenger).SetIntensity(seat.Low))
	require.NoError(t, r.Report(context.Background()))

	writes := out.Writes()
	require.Len(t, writes, 1)
	assert.True(t, strings.HasPrefix(string(writes[0]), "\033[2J\033[H"))
	assert.Contains(t, string(writes[0]), "HEATER STATE:       OFF                 LOW")
	assert.True(t, strings.HasSuffix(string(writes[0]), "% \r\n"))

	require.Equal(t, 1, sink.Len())
	assert.Equal(t, seat.Low, sink.snapshots[0].Seats[seat.Passenger].Intensity)

	require.NoError(t, r.Close())
	assert.True(t, sink.closed)
}

func TestRunWaitsForIntensityUpdate(t *testing.T) {
	out := &countingWriter{}
	r, _, hub := newReporter(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, out.Writes(), "no frame before the first update")

	hub.Raise(signal.IntensityUpdated)
	require.Eventually(t, func() bool { return len(out.Writes()) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("device gone")
}

// syncBuffer lets the test read log output written by the Run goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWriteFailureIsReportedAndLogged(t *testing.T) {
	logs := &syncBuffer{}
	sink := &recordingSink{}
	hub := signal.NewHub()
	require.NoError(t, hub.Subscribe(signal.Telemetry, signal.IntensityUpdated))

	cfg := telemetry.Config{Output: telemetry.StdoutOutput, Interval: 10 * time.Millisecond}
	r, err := telemetry.NewReporter(cfg, brokenWriter{}, seat.NewSeats(), hub, timing.NewTable(),
		logger.New(zerolog.New(logs)), sink)
	require.NoError(t, err)

	err = r.Report(context.Background())
	require.Error(t, err)
	assert.Equal(t, telemetry.ErrWriteFrame, seaterrors.CodeOf(err))
	assert.Equal(t, 0, sink.Len(), "no snapshot without a frame")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	hub.Raise(signal.IntensityUpdated)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "device gone")
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, telemetry.DefaultConfig().Validate())
	assert.Error(t, telemetry.Config{Interval: time.Second}.Validate())
	assert.Error(t, telemetry.Config{Output: "-", Interval: -time.Second}.Validate())
}

func TestOpenOutputFile(t *testing.T) {
	path := t.TempDir() + "/tty"

	w, err := telemetry.OpenOutput(path)
	require.NoError(t, err)

	_, err = w.Write([]byte("frame"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = telemetry.OpenOutput(t.TempDir() + "/missing/dir/tty")
	assert.Error(t, err)
}
