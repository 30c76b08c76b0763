package sqlite

import (
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB creates a named shared in-memory database so the writer and
// reader pools see the same data. The name comes from t.Name() so tests stay
// isolated; path-escaping keeps subtest names with slashes from being read
// as DSN query parameters.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// In-memory databases have no WAL; the journal_mode pragma is omitted.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		url.PathEscape(t.Name()), busyTimeoutMS,
	)

	writer, err := openPool(dsn, writerMaxConns)
	if err != nil {
		t.Fatalf("open test writer: %v", err)
	}

	reader, err := openPool(dsn, readerMaxConns)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}
