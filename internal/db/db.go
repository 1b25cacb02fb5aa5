package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"ocsbridge/internal/models"
)

// Dialect selects SQL differences between the supported backends.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Store is the inventory database. It wraps a bounded connection pool and
// is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the backend named in cfg and ensures the schema exists.
func Open(cfg models.Config) (*Store, error) {
	switch Dialect(cfg.DBDriver) {
	case Postgres:
		return OpenPostgres(cfg.DatabaseURL, cfg.DBMaxConns)
	case SQLite, "":
		return OpenSQLite(cfg.DBPath, cfg.DBMaxConns)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
// ":memory:" gives a private in-memory database limited to one connection.
func OpenSQLite(path string, maxConns int) (*Store, error) {
	memory := path == ":memory:"
	if !memory {
		if err := ensureDirectory(path); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if memory {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)

	s := &Store{db: conn, dialect: SQLite}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	if !memory {
		s.enableWAL()
	}
	return s, nil
}

// OpenPostgres connects to PostgreSQL through the pgx database/sql driver.
func OpenPostgres(url string, maxConns int) (*Store, error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns / 2)
	conn.SetConnMaxIdleTime(1 * time.Minute)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: conn, dialect: Postgres}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return createSchema(s.db, s.dialect)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping performs a round trip to the database.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Dialect reports which backend the store talks to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

func (s *Store) enableWAL() {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("⚠️  Could not enable WAL mode: %v", err)
	}
}
