// Package memory_store persists the assistant's conversations, memories,
// personality traits, learned preferences, daily summaries and corrections in
// a single SQLite file.
package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Config carries the store's dependencies.
type Config struct {
	Database pkgconfig.SQLiteConfig
	Logger   logger.Logger
	Metrics  *metrics.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Location decides which calendar day "today" is for summaries. Nil
	// keeps the location of the times Clock returns.
	Location *time.Location
}

// Store is the SQLite-backed memory store. Reads share the connection pool;
// writes go through a single writer lock.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	loc     *time.Location
}

// Open creates the database file if needed, migrates it forward and seeds the
// default personality.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := cfg.Logger.WithFields(logger.ComponentField("memory_store"))

	path, err := cfg.Database.ResolvedPath()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := reconcileColumns(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(dsn, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := seedTraits(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("Memory store ready", logger.StringField("path", path))

	return &Store{
		db:      db,
		log:     log,
		metrics: cfg.Metrics,
		now:     cfg.Clock,
		loc:     cfg.Location,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// write runs fn while holding the writer lock.
func (s *Store) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := fn(ctx)
	s.observe(op, err)
	return err
}

func (s *Store) observe(op string, err error) {
	s.metrics.ObserveStoreOp(op, err)
	if err != nil {
		s.log.Debug("Store operation failed",
			logger.StringField("operation", op),
			logger.ErrorField(err),
		)
	}
}

// today returns the current time in the store's location.
func (s *Store) today() time.Time {
	if s.loc == nil {
		return s.now()
	}
	return s.now().In(s.loc)
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// sqlTime scans timestamp columns written either by this package or by
// CURRENT_TIMESTAMP. The driver may hand back a time.Time or raw text.
type sqlTime struct {
	Time time.Time
}

var timeLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	DateLayout,
}

// Scan implements sql.Scanner.
func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *sqlTime) parse(s string) error {
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}
