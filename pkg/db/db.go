package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register "pgx" driver
	_ "modernc.org/sqlite"             // Register "sqlite" driver
)

// Dialect names a supported database engine.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// TimeLayout is the stored timestamp format. It sorts lexically.
const TimeLayout = "20060102150405"

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the configured engine and runs migrations.
// SQLite uses path; Postgres uses dsn.
func Open(ctx context.Context, driver, path, dsn string) (*DB, error) {
	switch Dialect(strings.ToLower(driver)) {
	case SQLite, "":
		return Init(path)
	case Postgres, "pgx", "postgresql":
		return InitPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// Init opens the SQLite database at path and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{DB: db, Dialect: SQLite}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// InitPostgres connects to a PostgreSQL server through the pgx driver and runs migrations.
func InitPostgres(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	db.SetMaxOpenConns(4)

	d := &DB{DB: db, Dialect: Postgres}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return d, nil
}

// Rebind rewrites "?" placeholders into the dialect's form.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) migrate() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.Dialect == Postgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS pagestatus (
			` + idColumn + `,
			wiki TEXT NOT NULL,
			page TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'WAITING',
			message TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL DEFAULT '',
			UNIQUE (wiki, page)
		);`,
		`CREATE INDEX IF NOT EXISTS pagestatus_wiki_status ON pagestatus (wiki, status);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	return nil
}
