package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SQLiteConfig holds settings for a single-file SQLite database.
type SQLiteConfig struct {
	// Path to the database file; a leading ~ expands to the home directory
	Path string `env:"DB_PATH" yaml:"path" default:"~/friday-assistant/friday_data.db"`

	// BusyTimeout is how long a connection waits on a locked database
	BusyTimeout time.Duration `env:"DB_BUSY_TIMEOUT" yaml:"busy_timeout" default:"5s"`

	// JournalMode is passed to PRAGMA journal_mode
	JournalMode string `env:"DB_JOURNAL_MODE" yaml:"journal_mode" default:"WAL"`

	// MaxOpenConns caps the connection pool; readers share it, writes are serialized
	MaxOpenConns int `env:"DB_MAX_OPEN_CONNS" yaml:"max_open_conns" default:"4"`
}

// Validate checks SQLiteConfig for usable values
func (c SQLiteConfig) Validate() error {
	var result error
	if strings.TrimSpace(c.Path) == "" {
		result = multierror.Append(result, fmt.Errorf("database path must not be empty"))
	}
	if c.BusyTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("busy_timeout must not be negative, got %s", c.BusyTimeout))
	}
	switch strings.ToUpper(c.JournalMode) {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported journal_mode %q", c.JournalMode))
	}
	if c.MaxOpenConns < 1 {
		result = multierror.Append(result, fmt.Errorf("max_open_conns must be at least 1, got %d", c.MaxOpenConns))
	}
	return result
}

// ResolvedPath expands a leading ~ in Path.
func (c SQLiteConfig) ResolvedPath() (string, error) {
	if c.Path == "~" || strings.HasPrefix(c.Path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(c.Path, "~")), nil
	}
	return c.Path, nil
}

// DSN builds a modernc.org/sqlite data source name carrying the pragmas, so
// every pooled connection gets them.
func (c SQLiteConfig) DSN() (string, error) {
	path, err := c.ResolvedPath()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode(), nil
}
