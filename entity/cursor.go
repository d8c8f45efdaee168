package entity

import (
	"context"
	"time"
)

// Cursor is the resume position of a chain watcher, e.g. the last processed L2 block
// or the last L1 tagged block index.
type Cursor struct {
	Name      string    `db:"name"`
	Position  uint64    `db:"position"`
	UpdatedAt time.Time `db:"updated_at"`
}

type CursorsRepo interface {
	Ensure(ctx context.Context, cursor *Cursor) error
	// GetByName returns ErrCursorNotFound for a watcher that never ran.
	GetByName(ctx context.Context, name string) (*Cursor, error)
}
