package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/seatctl/internal/errors"
	"codeberg.org/mutker/seatctl/internal/logger"
)

// ValidateAndUpdateSchema brings db to SchemaVersion. The seat history has no
// upgrade path between versions: a database on another version is copied to
// backupDir and rebuilt empty, dropping every table it held.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	version, err := SchemaVersionOf(db)
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	}

	existing, err := userTables(db)
	if err != nil {
		return err
	}

	log.Debug().
		Int("found", version).
		Int("want", SchemaVersion).
		Strs("tables", existing).
		Msg("Rebuilding metrics schema")

	if len(existing) > 0 {
		if _, err := backupDatabase(db, backupDir, version, log); err != nil {
			return err
		}
	}

	return rebuildSchema(db, log)
}

func backupDatabase(db *sql.DB, backupDir string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(backupDir, defaultDirPerm); err != nil {
		return "", errFactory.Wrap(ErrSchemaMigrationFailed, err).WithMessage("Failed to create metrics backup directory")
	}

	name := fmt.Sprintf("seatctl_metrics_v%d_%s.db", version, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(backupDir, name)

	// VACUUM INTO cannot run inside a transaction.
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "backup",
			Path:  path,
			Error: err.Error(),
		})
	}

	log.Info().Str("path", path).Int("version", version).Msg("Metrics database backed up")

	return path, nil
}

// rebuildSchema drops whatever tables the database holds, creates the current
// ones and stamps the version, in one transaction.
func rebuildSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Debug().Err(err).Msg("Failed to roll back schema rebuild")
		}
	}()

	existing, err := userTables(tx)
	if err != nil {
		return err
	}
	for _, table := range existing {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(table)); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase string
				Table string
				Error string
			}{
				Phase: "drop_table",
				Table: table,
				Error: err.Error(),
			})
		}
	}

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, struct {
				SQL   string
				Error string
			}{
				SQL:   stmt,
				Error: err.Error(),
			})
		}
	}

	// PRAGMA arguments cannot be bound.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err).WithMessage("Failed to record schema version")
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	log.Info().
		Int("version", SchemaVersion).
		Int("dropped", len(existing)).
		Msg("Metrics schema initialized")

	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
