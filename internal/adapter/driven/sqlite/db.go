// Package sqlite implements the persistence ports on SQLite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Relay traffic is read-heavy (client/integration list and detail endpoints)
// with a short burst of writes per sync. A single writer connection
// serializes those bursts; a small reader pool serves the API.
const (
	writerMaxConns = 1
	readerMaxConns = 4
	busyTimeoutMS  = 5000
)

// DB holds split writer/reader connection pools over one SQLite file.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database with WAL journaling, synchronous NORMAL, and a
// 64MB page cache. Integrations reference clients with an ON DELETE CASCADE
// foreign key, so foreign_keys is enabled on every connection.
func NewDB(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath, busyTimeoutMS,
	)

	writer, err := openPool(dsn, writerMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(dsn, readerMaxConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{
		Writer: writer,
		Reader: reader,
		path:   dbPath,
	}, nil
}

// openPool opens and pings one connection pool with a capped size.
func openPool(dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return pool, nil
}

// Close closes both pools. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
