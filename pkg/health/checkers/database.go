package checkers

import (
	"context"
	"fmt"
)

// Pinger is satisfied by the memory store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker reports a database as healthy while Ping succeeds.
type DatabaseChecker struct {
	name string
	db   Pinger
}

// NewDatabaseChecker wraps a Pinger; name defaults to "database".
func NewDatabaseChecker(db Pinger, name string) *DatabaseChecker {
	if name == "" {
		name = "database"
	}
	return &DatabaseChecker{name: name, db: db}
}

func (d *DatabaseChecker) Name() string { return d.name }

func (d *DatabaseChecker) Check(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", d.name, err)
	}
	return nil
}
