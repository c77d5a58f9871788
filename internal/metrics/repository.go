package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/logger"
	"codeberg.org/mutker/seatctl/internal/seat"
	"codeberg.org/mutker/seatctl/internal/telemetry"
	_ "github.com/mattn/go-sqlite3"
)

const maxBufferedBatches = 10

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	mu     sync.Mutex
	buffer []*telemetry.Snapshot
	closed bool

	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// NewRepository opens (or creates) the database at cfg.DBPath. Snapshots are
// buffered and written in one transaction per batch.
func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Metrics repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*telemetry.Snapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

func (r *repository) Record(snapshot *telemetry.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrStorageClose)
	}

	r.buffer = append(r.buffer, snapshot)

	if len(r.buffer) < r.cfg.BatchSize {
		return nil
	}

	err := r.flush()
	if err != nil {
		r.trim()
	}
	return err
}

// trim drops the oldest snapshots once failed flushes have let the buffer
// grow past maxBufferedBatches batches.
func (r *repository) trim() {
	limit := r.cfg.BatchSize * maxBufferedBatches
	if len(r.buffer) <= limit {
		return
	}

	dropped := len(r.buffer) - limit
	r.buffer = append(r.buffer[:0], r.buffer[dropped:]...)
	r.logger.Warn().Int("dropped", dropped).Msg("Metrics buffer full, dropping oldest snapshots")
}

func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	// Without a flusher the final flush happens here
	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.Error().Err(flushErr).Msg("Failed to flush metrics on close")
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Metrics repository closed gracefully")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic metrics flush failed")
				r.trim()
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if err := r.insert(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			r.logger.Error().Err(rerr).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("snapshots", len(r.buffer)).Msg("Flushed metrics to database")
	r.buffer = r.buffer[:0]

	return nil
}

func (r *repository) insert(tx *sql.Tx) error {
	seatStmt, err := tx.Prepare(GetInsertSeatStatusSQL())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return err
	}
	defer seatStmt.Close()

	loadStmt, err := tx.Prepare(GetInsertCPULoadSQL())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return err
	}
	defer loadStmt.Close()

	for _, snapshot := range r.buffer {
		ts := snapshot.Timestamp.UnixMilli()

		for _, s := range snapshot.Seats {
			if _, err := seatStmt.Exec(
				ts,
				strings.ToLower(s.ID.String()),
				int64(s.Requested),
				int64(s.Current),
				int64(intensityCode(s.Intensity)),
				int64(boolToInt(s.Fault)),
			); err != nil {
				r.logger.Error().Err(err).Msg("Failed to execute insert")
				return err
			}
		}

		if _, err := loadStmt.Exec(
			ts,
			int64(snapshot.Timing.Load),
			snapshot.Timing.Elapsed.Milliseconds(),
		); err != nil {
			r.logger.Error().Err(err).Msg("Failed to execute insert")
			return err
		}
	}

	return nil
}

// intensityCode stores the zero value of an uninitialized state as off.
func intensityCode(i seat.Intensity) uint8 {
	if !i.Valid() {
		return uint8(seat.Off)
	}
	return uint8(i)
}
