package metrics

import (
	"database/sql"

	"codeberg.org/mutker/seatctl/internal/errors"
)

// SchemaVersion is stored in the database header (PRAGMA user_version).
// Bump it whenever the statements below change.
const SchemaVersion = 1

const (
	createSeatStatusSQL = `
    CREATE TABLE seat_status (
        timestamp   INTEGER NOT NULL CHECK (typeof(timestamp) = 'integer'),
        seat        TEXT NOT NULL CHECK (seat IN ('driver', 'passenger')),
        requested   INTEGER NOT NULL CHECK (typeof(requested) = 'integer'),
        current     INTEGER NOT NULL CHECK (typeof(current) = 'integer'),
        intensity   INTEGER NOT NULL CHECK (intensity BETWEEN 1 AND 4),
        fault       INTEGER NOT NULL CHECK (fault IN (0, 1)),
        PRIMARY KEY (timestamp, seat)
    )`

	createCPULoadSQL = `
    CREATE TABLE cpu_load (
        timestamp   INTEGER PRIMARY KEY,
        load        INTEGER NOT NULL CHECK (load >= 0),
        elapsed_ms  INTEGER NOT NULL CHECK (typeof(elapsed_ms) = 'integer')
    )`

	insertSeatStatusSQL = `
    INSERT OR REPLACE INTO seat_status (
        timestamp, seat, requested, current, intensity, fault
    ) VALUES (?, ?, ?, ?, ?, ?)`

	insertCPULoadSQL = `
    INSERT OR REPLACE INTO cpu_load (
        timestamp, load, elapsed_ms
    ) VALUES (?, ?, ?)`

	userTablesSQL = `
    SELECT name FROM sqlite_master
    WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
    ORDER BY name`
)

// schema lists the statements that build the current version, in order.
var schema = []string{createSeatStatusSQL, createCPULoadSQL}

// SchemaVersionOf reads the version recorded in the database header.
// A database that was never initialized reports 0.
func SchemaVersionOf(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}
	return version, nil
}

// userTables lists every table the database holds apart from sqlite's own.
func userTables(q interface {
	Query(query string, args ...any) (*sql.Rows, error)
}) ([]string, error) {
	rows, err := q.Query(userTablesSQL)
	if err != nil {
		return nil, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.New().Wrap(ErrSchemaValidationFailed, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrSchemaValidationFailed, err)
	}

	return names, nil
}

// GetInsertSeatStatusSQL returns the SQL to insert one seat row
func GetInsertSeatStatusSQL() string {
	return insertSeatStatusSQL
}

// GetInsertCPULoadSQL returns the SQL to insert one load row
func GetInsertCPULoadSQL() string {
	return insertCPULoadSQL
}
