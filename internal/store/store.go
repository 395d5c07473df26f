package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/clock"
	"github.com/roach88/chartsync/internal/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its dialect, base FS and logger in package globals.
var migrateMu sync.Mutex

// Op identifies the kind of committed write.
type Op string

const (
	OpWrite  Op = "write"
	OpDelete Op = "delete"
	OpConfig Op = "config"
)

// WriteEvent is delivered to subscribers after a write commits.
type WriteEvent struct {
	Op        Op
	DiagramID string
}

// Store is the local entity store: one SQLite file holding every diagram
// and its child collections.
type Store struct {
	db    *sql.DB
	log   *zap.Logger
	clock clock.Clock

	mu        sync.Mutex
	observers map[int]func(WriteEvent)
	nextObs   int
}

// Option configures Open.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock sets the clock that stamps updatedAt on writes.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{clock: clock.Real{}, observers: map[int]func(WriteEvent){}}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := migrate(context.Background(), db, s.log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Subscribe registers fn to be called after every committed write.
// fn runs on the writer's goroutine, after the transaction has closed.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(WriteEvent)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(ev WriteEvent) {
	s.mu.Lock()
	fns := make([]func(WriteEvent), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// migrate applies the embedded goose migrations.
func migrate(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{log.Sugar()})

	return goose.UpContext(ctx, db, "migrations")
}

// gooseLogger routes goose progress output to zap at debug level.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) { l.s.Debugf(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
