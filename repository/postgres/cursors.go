package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
)

type cursorsRepo basePostgresRepo

func NewCursorsRepo(table string, db *db.DB) entity.CursorsRepo {
	return (*cursorsRepo)(newBasePostgresRepo(table, db))
}

func (r *cursorsRepo) Ensure(ctx context.Context, cursor *entity.Cursor) error {
	q, args, err := sq.Insert(r.table).
		Columns("name", "position").
		Values(cursor.Name, cursor.Position).
		Suffix("ON CONFLICT (name) DO UPDATE SET updated_at = NOW(), position = EXCLUDED.position").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert cursor: %w", err)
	}
	return nil
}

func (r *cursorsRepo) GetByName(ctx context.Context, name string) (*entity.Cursor, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"name": name}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	cursor := new(entity.Cursor)
	err = r.db.GetContext(ctx, cursor, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("cursor %s: %w", name, entity.ErrCursorNotFound)
		}
		return nil, fmt.Errorf("can't get cursor by name: %w", err)
	}
	return cursor, nil
}
