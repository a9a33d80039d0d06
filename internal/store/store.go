package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "BFILE_DB_MAX_OPEN_CONNS"
	connMaxLifetimeEnvKey = "BFILE_DB_CONN_MAX_LIFETIME"
)

// connectionPragmas run on every new connection. foreign_keys and
// busy_timeout are per-connection settings in SQLite.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database and brings the schema up to date.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	poolFromEnv().apply(db)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	query := url.Values{"_pragma": connectionPragmas}
	u := url.URL{Scheme: "file", Path: path, RawQuery: query.Encode()}
	return u.String(), nil
}

// pool holds connection pool limits. SQLite allows one writer, so the
// defaults keep a single connection.
type pool struct {
	maxOpen  int
	lifetime time.Duration
}

func poolFromEnv() pool {
	return pool{
		maxOpen:  intFromEnv(maxOpenConnsEnvKey, maxOpenConns),
		lifetime: durationFromEnv(connMaxLifetimeEnvKey, connMaxLifetime),
	}
}

func (p pool) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.maxOpen)
	db.SetMaxIdleConns(min(p.maxOpen, maxIdleConns))
	db.SetConnMaxLifetime(p.lifetime)
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// durationFromEnv accepts Go durations or a bare number of seconds.
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
