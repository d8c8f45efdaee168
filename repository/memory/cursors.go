package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poanetwork/layer-bridge/entity"
)

type cursorsRepo struct {
	mu      sync.RWMutex
	cursors map[string]entity.Cursor
}

func NewCursorsRepo() entity.CursorsRepo {
	return &cursorsRepo{
		cursors: make(map[string]entity.Cursor),
	}
}

func (r *cursorsRepo) Ensure(_ context.Context, cursor *entity.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cursor
	c.UpdatedAt = time.Now().UTC()
	r.cursors[c.Name] = c
	return nil
}

func (r *cursorsRepo) GetByName(_ context.Context, name string) (*entity.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cursors[name]
	if !ok {
		return nil, fmt.Errorf("cursor %s: %w", name, entity.ErrCursorNotFound)
	}
	return &c, nil
}
