package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type column struct {
	name string
	decl string
}

// legacyColumns lists columns that older database files may lack. ALTER TABLE
// cannot add non-constant defaults, so timestamp columns come back NULL.
var legacyColumns = map[string][]column{
	"conversations": {
		{"topic", "TEXT"},
		{"sentiment", "TEXT"},
	},
	"user_memories": {
		{"importance", "INTEGER DEFAULT 5"},
		{"last_referenced", "DATETIME"},
	},
	"personality_traits": {
		{"description", "TEXT"},
		{"updated_at", "DATETIME"},
	},
	"learned_preferences": {
		{"confidence", "REAL DEFAULT 0.5"},
		{"times_confirmed", "INTEGER DEFAULT 1"},
		{"updated_at", "DATETIME"},
	},
	"conversation_summaries": {
		{"topics", "TEXT"},
		{"mood", "TEXT"},
	},
}

// reconcileColumns adds any missing columns to tables that already exist.
// Tables that do not exist yet are left to the migrations.
func reconcileColumns(ctx context.Context, db *sql.DB, log logger.Logger) error {
	for table, wanted := range legacyColumns {
		have, err := tableColumns(ctx, db, table)
		if err != nil {
			return err
		}
		if len(have) == 0 {
			continue
		}
		for _, col := range wanted {
			if have[col.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.decl)
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
			log.Info("Added missing column",
				logger.StringField("table", table),
				logger.StringField("column", col.name),
			)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// runMigrations applies the embedded migrations on a dedicated handle, since
// closing the migrator also closes its database.
func runMigrations(dsn string, log logger.Logger) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration handle: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create embedded migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := migrator.Version()
	log.Info("Applied database migrations",
		logger.Field("version", version),
		logger.BoolField("dirty", dirty),
	)
	return nil
}

// seedTraits inserts the default personality once; existing values are kept.
func seedTraits(ctx context.Context, db *sql.DB) error {
	for _, t := range traitTable {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO personality_traits (trait_name, trait_value, description) VALUES (?, ?, ?)`,
			string(t.Trait), t.Default, t.Description,
		); err != nil {
			return fmt.Errorf("seed trait %s: %w", t.Trait, err)
		}
	}
	return nil
}
