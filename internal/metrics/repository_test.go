package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailingFlushKeepsBufferBounded(t *testing.T) {
	repo, err := NewRepository(Config{
		DBPath:    filepath.Join(t.TempDir(), "metrics.db"),
		Enabled:   true,
		BatchSize: 2,
	}, logger.Nop())
	require.NoError(t, err)
	r := repo.(*repository)

	// Every insert fails from here on.
	_, err = r.db.Exec("DROP TABLE seat_status")
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0)
	var last *telemetry.Snapshot
	for i := 0; i < 100; i++ {
		last = &telemetry.Snapshot{Timestamp: base.Add(time.Duration(i) * time.Second)}
		err := r.Record(last)
		if i%2 == 1 {
			assert.Error(t, err)
		}
	}

	r.mu.Lock()
	n := len(r.buffer)
	newest := r.buffer[n-1]
	r.mu.Unlock()

	assert.LessOrEqual(t, n, 2*maxBufferedBatches)
	assert.Same(t, last, newest, "the newest snapshots are kept")

	// Close still releases the database even though the final flush fails.
	require.NoError(t, r.Close())
}
