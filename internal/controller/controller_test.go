package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/seatctl/internal/controller"
	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/hardware"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/signal"
	"codeberg.org/mutker/seatctl/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu     sync.Mutex
	events []controller.FaultEvent
}

func (r *recordingReporter) ReportFault(_ context.Context, ev controller.FaultEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) Events() []controller.FaultEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]controller.FaultEvent(nil), r.events...)
}

func testConfig() controller.Config {
	return controller.Config{
		ButtonInterval: 5 * time.Millisecond,
		SensorInterval: 10 * time.Millisecond,
		SettleDelay:    0,
		LoadInterval:   20 * time.Millisecond,
		FaultMin:       5,
		FaultMax:       40,
	}
}

func newController(t *testing.T, board hardware.Board, opts ...controller.Option) *controller.Controller {
	t.Helper()

	c, err := controller.New(testConfig(), board, logger.Nop(), opts...)
	require.NoError(t, err)

	return c
}

func raw(temp seat.Temperature) int {
	return seat.RawFor(temp)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, controller.DefaultConfig().Validate())

	cfg := controller.DefaultConfig()
	cfg.SensorInterval = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInterval, errors.CodeOf(err))

	cfg = controller.DefaultConfig()
	cfg.FaultMin, cfg.FaultMax = 40, 5
	err = cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidRange, errors.CodeOf(err))
}

func TestInputMonitorEdgeDetection(t *testing.T) {
	fake := hardware.NewFake([2]int{})
	c := newController(t, fake)
	mon := c.Inputs[seat.Driver]
	ch := c.Seats().Get(seat.Driver)

	fake.SetPressed(seat.Driver, true)
	assert.True(t, mon.Poll())
	assert.False(t, mon.Poll(), "held button must not count again")
	assert.False(t, mon.Poll())
	assert.Equal(t, seat.RequestLow, ch.Snapshot().Requested)
	assert.True(t, c.Hub().Pending(signal.Decision).Has(signal.RequestChanged))

	press := func() {
		fake.SetPressed(seat.Driver, false)
		mon.Poll()
		fake.SetPressed(seat.Driver, true)
		mon.Poll()
	}

	press()
	assert.Equal(t, seat.RequestMedium, ch.Snapshot().Requested)
	press()
	assert.Equal(t, seat.RequestHigh, ch.Snapshot().Requested)
	press()
	assert.Equal(t, seat.RequestOff, ch.Snapshot().Requested)
	assert.Equal(t, 0, ch.Snapshot().PressCount)

	assert.Equal(t, seat.RequestOff, c.Seats().Get(seat.Passenger).Snapshot().Requested, "other seat untouched")
}

func TestInputMonitorReadErrorCountsAsReleased(t *testing.T) {
	fake := hardware.NewFake([2]int{})
	c := newController(t, fake)
	mon := c.Inputs[seat.Passenger]

	fake.SetPressed(seat.Passenger, true)
	require.True(t, mon.Poll())

	fake.ButtonErr = assert.AnError
	assert.False(t, mon.Poll())

	fake.ButtonErr = nil
	assert.True(t, mon.Poll(), "a failed read releases the edge detector")
}

func TestSamplerScalesAndKeepsPreviousOnError(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(18), raw(22)})
	c := newController(t, fake)

	c.Sampler.Sample()
	assert.Equal(t, seat.Temperature(18), c.Seats().Get(seat.Driver).Current())
	assert.Equal(t, seat.Temperature(22), c.Seats().Get(seat.Passenger).Current())
	assert.True(t, c.Hub().Pending(signal.Fault).Has(signal.TemperatureUpdated))

	fake.SetRaw(seat.Driver, raw(30))
	fake.SetSensorErr(seat.Driver, assert.AnError)
	c.Sampler.Sample()
	assert.Equal(t, seat.Temperature(18), c.Seats().Get(seat.Driver).Current())
}

func TestDecisionRaisesIntensityAndRevalidates(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(18), raw(18)})
	c := newController(t, fake)

	c.Seats().Get(seat.Driver).Press()
	c.Seats().Get(seat.Driver).Press()
	c.Sampler.Sample()

	for _, consumer := range []signal.Consumer{signal.Decision, signal.Fault} {
		_, err := c.Hub().Wait(context.Background(), consumer)
		require.NoError(t, err)
	}

	c.Decision.Evaluate()

	assert.Equal(t, seat.High, c.Seats().Get(seat.Driver).Intensity())
	assert.True(t, c.Hub().Pending(signal.Actuation).Has(signal.IntensityUpdated))
	assert.True(t, c.Hub().Pending(signal.Telemetry).Has(signal.IntensityUpdated))
	assert.True(t, c.Hub().Pending(signal.Fault).Has(signal.TemperatureUpdated))
	assert.False(t, c.Hub().Pending(signal.Decision).Has(signal.TemperatureUpdated), "decision must not wake itself")
}

func TestActuationOutputPairs(t *testing.T) {
	tests := []struct {
		level seat.Intensity
		a, b  bool
	}{
		{seat.Off, false, false},
		{seat.Low, true, false},
		{seat.Medium, false, true},
		{seat.High, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			fake := hardware.NewFake([2]int{})
			c := newController(t, fake)

			require.NoError(t, fake.Set(seat.Passenger, hardware.HeaterA, !tt.a))
			require.NoError(t, fake.Set(seat.Passenger, hardware.HeaterB, !tt.b))
			require.NoError(t, c.Seats().Get(seat.Passenger).SetIntensity(tt.level))

			require.NoError(t, c.Actuation.Apply(context.Background()))

			assert.Equal(t, tt.a, fake.Output(seat.Passenger, hardware.HeaterA))
			assert.Equal(t, tt.b, fake.Output(seat.Passenger, hardware.HeaterB))
			assert.False(t, fake.Output(seat.Driver, hardware.HeaterA))
			assert.False(t, fake.Output(seat.Driver, hardware.HeaterB))
		})
	}
}

func TestActuationWritesReleasedLineFirst(t *testing.T) {
	fake := hardware.NewFake([2]int{})
	c := newController(t, fake)

	require.NoError(t, c.Seats().Get(seat.Driver).SetIntensity(seat.Medium))
	require.NoError(t, c.Actuation.Apply(context.Background()))

	writes := fake.Writes()
	require.GreaterOrEqual(t, len(writes), 2)
	assert.Equal(t, hardware.Write{Seat: seat.Driver, Output: hardware.HeaterA, On: false}, writes[0])
	assert.Equal(t, hardware.Write{Seat: seat.Driver, Output: hardware.HeaterB, On: true}, writes[1])
}

func TestActuationSettleDelayHonoursCancel(t *testing.T) {
	fake := hardware.NewFake([2]int{})
	cfg := testConfig()
	cfg.SettleDelay = time.Hour
	c, err := controller.New(cfg, fake, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Actuation.Apply(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, fake.Writes(), 2, "second seat is not written after cancel")
}

func TestFaultMonitorRangeBounds(t *testing.T) {
	tests := []struct {
		temp  seat.Temperature
		fault bool
	}{
		{4, true},
		{5, false},
		{40, false},
		{41, true},
	}

	for _, tt := range tests {
		fake := hardware.NewFake([2]int{raw(tt.temp), raw(20)})
		c := newController(t, fake)
		ch := c.Seats().Get(seat.Driver)
		require.NoError(t, ch.SetIntensity(seat.High))

		c.Sampler.Sample()
		c.Fault.Check()

		assert.Equal(t, tt.fault, fake.Output(seat.Driver, hardware.FaultIndicator), "temperature %d", tt.temp)
		assert.False(t, fake.Output(seat.Passenger, hardware.FaultIndicator))
		if tt.fault {
			assert.Equal(t, seat.Off, ch.Intensity(), "temperature %d", tt.temp)
			rec, ok := ch.LastFailure()
			require.True(t, ok)
			assert.Equal(t, "Invalid Driver Temperature Sensor Range", rec.Message)
			assert.Equal(t, seat.High, rec.Intensity)
			assert.True(t, c.Hub().Pending(signal.Actuation).Has(signal.IntensityUpdated),
				"override must re-trigger actuation")
		} else {
			assert.Equal(t, seat.High, ch.Intensity(), "temperature %d", tt.temp)
			_, ok := ch.LastFailure()
			assert.False(t, ok)
		}
	}
}

func TestFaultMonitorRecoveryKeepsRecord(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(20), raw(45)})
	reporter := &recordingReporter{}
	c := newController(t, fake, controller.WithFaultReporters(reporter))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Fault.Dispatch(ctx)

	c.Sampler.Sample()
	c.Fault.Check()
	c.Fault.Check()

	ch := c.Seats().Get(seat.Passenger)
	assert.True(t, ch.Faulted())
	assert.True(t, fake.Output(seat.Passenger, hardware.FaultIndicator))

	fake.SetRaw(seat.Passenger, raw(30))
	c.Sampler.Sample()
	c.Fault.Check()

	assert.False(t, ch.Faulted())
	assert.False(t, fake.Output(seat.Passenger, hardware.FaultIndicator))
	rec, ok := ch.LastFailure()
	require.True(t, ok)
	assert.Equal(t, "Invalid Passenger Temperature Sensor Range", rec.Message)
	assert.True(t, c.Hub().Pending(signal.Decision).Has(signal.RequestChanged), "recovery asks for a fresh decision")

	require.Eventually(t, func() bool { return len(reporter.Events()) == 2 }, time.Second, 5*time.Millisecond)
	events := reporter.Events()
	assert.True(t, events[0].Active)
	assert.Equal(t, seat.Passenger, events[0].Seat)
	assert.False(t, events[1].Active)
}

func TestDecisionSkipsFaultedSeat(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(3), raw(20)})
	c := newController(t, fake)

	c.Seats().Get(seat.Driver).Press()
	c.Sampler.Sample()
	c.Fault.Check()
	c.Decision.Evaluate()

	assert.Equal(t, seat.Off, c.Seats().Get(seat.Driver).Intensity())
}

func TestLoadEstimator(t *testing.T) {
	now := time.Unix(0, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	table := timing.NewTableWithClock(clock)
	c := newController(t, hardware.NewFake([2]int{}), controller.WithTable(table))

	table.Add(timing.Decision, 100*time.Millisecond)
	table.Add(timing.Telemetry, 50*time.Millisecond)
	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()

	assert.Equal(t, 15, c.Load.Measure())
	assert.Equal(t, 15, table.Load())
}

func TestScenarioMediumRequestFromCold(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(18), raw(20)})
	c := newController(t, fake)

	ch := c.Seats().Get(seat.Driver)
	ch.Press()
	_, requested := ch.Press()
	require.Equal(t, seat.Temperature(30), requested)

	c.Sampler.Sample()
	c.Decision.Evaluate()
	c.Fault.Check()
	require.NoError(t, c.Actuation.Apply(context.Background()))

	assert.Equal(t, seat.High, ch.Intensity())
	assert.True(t, fake.Output(seat.Driver, hardware.HeaterA))
	assert.True(t, fake.Output(seat.Driver, hardware.HeaterB))
}

func TestScenarioOffRequestNearZero(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(3), raw(20)})
	c := newController(t, fake)

	ch := c.Seats().Get(seat.Driver)
	require.NoError(t, ch.SetIntensity(seat.High))
	require.NoError(t, fake.Set(seat.Driver, hardware.HeaterA, true))
	require.NoError(t, fake.Set(seat.Driver, hardware.HeaterB, true))

	c.Sampler.Sample()
	c.Decision.Evaluate()
	c.Fault.Check()
	require.NoError(t, c.Actuation.Apply(context.Background()))

	assert.Equal(t, seat.Off, ch.Intensity())
	assert.False(t, fake.Output(seat.Driver, hardware.HeaterA))
	assert.False(t, fake.Output(seat.Driver, hardware.HeaterB))
}

func TestRunEndToEnd(t *testing.T) {
	fake := hardware.NewFake([2]int{raw(18), raw(20)})
	reporter := &recordingReporter{}
	c := newController(t, fake, controller.WithFaultReporters(reporter))

	var extraRan sync.WaitGroup
	extraRan.Add(1)
	c.Add("extra", controller.TaskFunc(func(ctx context.Context) error {
		extraRan.Done()
		<-ctx.Done()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	extraRan.Wait()

	fake.SetPressed(seat.Driver, true)
	require.Eventually(t, func() bool {
		return c.Seats().Get(seat.Driver).Snapshot().Requested == seat.RequestLow
	}, time.Second, time.Millisecond)
	fake.SetPressed(seat.Driver, false)

	require.Eventually(t, func() bool {
		return !fake.Output(seat.Driver, hardware.HeaterA) && fake.Output(seat.Driver, hardware.HeaterB)
	}, time.Second, 5*time.Millisecond, "25 requested at 18 drives medium")

	fake.SetRaw(seat.Passenger, raw(42))
	require.Eventually(t, func() bool {
		return fake.Output(seat.Passenger, hardware.FaultIndicator)
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(reporter.Events()) > 0 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return c.Table().Snapshot().Busy[timing.Sampler] > 0 }, time.Second, 5*time.Millisecond)

	assert.Error(t, c.Run(ctx), "second Run must be refused")

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}

	for _, id := range seat.All {
		assert.False(t, fake.Output(id, hardware.HeaterA))
		assert.False(t, fake.Output(id, hardware.HeaterB))
		assert.False(t, fake.Output(id, hardware.FaultIndicator))
	}
}
