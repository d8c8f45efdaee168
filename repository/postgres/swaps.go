package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
)

type swapsRepo basePostgresRepo

func NewSwapsRepo(table string, db *db.DB) entity.SwapsRepo {
	return (*swapsRepo)(newBasePostgresRepo(table, db))
}

func (r *swapsRepo) Create(ctx context.Context, swap *entity.SwapRecord) error {
	q, args, err := sq.Insert(r.table).
		Columns("swap_id", "initiator", "amount_l1", "recipient_l1", "amount_l2", "recipient_l2", "timelock",
			"l1_status", "l2_status", "status", "l1_block_id", "l2_tx_hash", "refund_pending", "refund_tx_hash",
			"last_error", "created_at", "updated_at").
		Values(swap.SwapID, swap.Initiator, swap.AmountL1, swap.RecipientL1, swap.AmountL2, swap.RecipientL2, swap.Timelock,
			swap.L1Status, swap.L2Status, swap.Status, swap.L1BlockID, swap.L2TxHash, swap.RefundPending, swap.RefundTxHash,
			swap.LastError, swap.CreatedAt, swap.UpdatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert swap: %w", err)
	}
	return nil
}

func (r *swapsRepo) GetByID(ctx context.Context, swapID common.Hash) (*entity.SwapRecord, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"swap_id": swapID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	swap := new(entity.SwapRecord)
	err = r.db.GetContext(ctx, swap, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("swap %s: %w", swapID, entity.ErrSwapNotFound)
		}
		return nil, fmt.Errorf("can't get swap: %w", err)
	}
	return swap, nil
}

func (r *swapsRepo) Update(ctx context.Context, swap *entity.SwapRecord) error {
	q, args, err := sq.Update(r.table).
		SetMap(map[string]interface{}{
			"l1_status":      swap.L1Status,
			"l2_status":      swap.L2Status,
			"status":         swap.Status,
			"l1_block_id":    swap.L1BlockID,
			"l2_tx_hash":     swap.L2TxHash,
			"refund_pending": swap.RefundPending,
			"refund_tx_hash": swap.RefundTxHash,
			"last_error":     swap.LastError,
			"updated_at":     swap.UpdatedAt,
		}).
		Where(sq.Eq{"swap_id": swap.SwapID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update swap: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("swap %s: %w", swap.SwapID, entity.ErrSwapNotFound)
	}
	return nil
}

func (r *swapsRepo) FindOpen(ctx context.Context, limit uint64) ([]*entity.SwapRecord, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Or{
			sq.Eq{"status": entity.SwapPending},
			sq.Eq{"refund_pending": true},
		}).
		OrderBy("created_at").
		Limit(limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	swaps := make([]*entity.SwapRecord, 0, limit)
	err = r.db.SelectContext(ctx, &swaps, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find open swaps: %w", err)
	}
	return swaps, nil
}
