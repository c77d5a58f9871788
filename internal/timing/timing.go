// Package timing accounts busy time per controller task and derives CPU load.
package timing

import (
	"fmt"
	"sync"
	"time"
)

// Task identifies an accounted controller task. The order is the dashboard order.
type Task int

const (
	Idle Task = iota
	DriverInput
	PassengerInput
	Decision
	Actuation
	Sampler
	Telemetry
	Fault
	LoadEstimator

	NumTasks
)

var taskNames = [NumTasks]string{
	Idle:           "IdleTask",
	DriverInput:    "DriverSeatHeatingLevelTask",
	PassengerInput: "PassengerSeatHeatingLevelTask",
	Decision:       "HeaterMonitorTask",
	Actuation:      "HeaterControlTask",
	Sampler:        "GetCurrentTempTask",
	Telemetry:      "DashboardDisplayTask",
	Fault:          "FailureHandleTask",
	LoadEstimator:  "RunTimeMeasurementsTask",
}

// String returns the name shown on the dashboard.
func (t Task) String() string {
	if t < 0 || t >= NumTasks {
		return fmt.Sprintf("Task(%d)", int(t))
	}
	return taskNames[t]
}

// Clock returns the current time.
type Clock func() time.Time

// Snapshot is a consistent copy of the table.
type Snapshot struct {
	Busy    [NumTasks]time.Duration
	Elapsed time.Duration
	Load    int
}

// Table accumulates busy time per task since start.
type Table struct {
	mu    sync.RWMutex
	now   Clock
	start time.Time
	busy  [NumTasks]time.Duration
	load  int
}

// NewTable starts a table on the wall clock.
func NewTable() *Table {
	return NewTableWithClock(time.Now)
}

// NewTableWithClock starts a table on clock.
func NewTableWithClock(clock Clock) *Table {
	return &Table{
		now:   clock,
		start: clock(),
	}
}

// Track starts measuring a busy section of task. Call the returned func when
// the section ends.
func (t *Table) Track(task Task) func() {
	begin := t.now()
	return func() {
		t.Add(task, t.now().Sub(begin))
	}
}

// Add credits d of busy time to task.
func (t *Table) Add(task Task, d time.Duration) {
	if task <= Idle || task >= NumTasks || d <= 0 {
		return
	}

	t.mu.Lock()
	t.busy[task] += d
	t.mu.Unlock()
}

// Elapsed returns the time since the table was started.
func (t *Table) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// Busy returns the summed busy time of every task except Idle.
func (t *Table) Busy() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.busySum()
}

func (t *Table) busySum() time.Duration {
	var sum time.Duration
	for task := Idle + 1; task < NumTasks; task++ {
		sum += t.busy[task]
	}
	return sum
}

// SetLoad publishes a load figure computed by the estimator.
func (t *Table) SetLoad(load int) {
	t.mu.Lock()
	t.load = load
	t.mu.Unlock()
}

// Load returns the last published load figure.
func (t *Table) Load() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.load
}

// Snapshot copies the table under its lock. Idle is whatever part of the
// elapsed time no task accounted for.
func (t *Table) Snapshot() Snapshot {
	elapsed := t.Elapsed()

	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Busy:    t.busy,
		Elapsed: elapsed,
		Load:    t.load,
	}
	if idle := elapsed - t.busySum(); idle > 0 {
		s.Busy[Idle] = idle
	}

	return s
}

// ComputeLoad returns floor(busy * 100 / elapsed), or 0 when nothing has elapsed.
func ComputeLoad(busy, elapsed time.Duration) int {
	if elapsed <= 0 || busy <= 0 {
		return 0
	}

	return int(int64(busy) * 100 / int64(elapsed))
}
