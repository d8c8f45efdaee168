package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
)

type messagesRepo struct {
	*basePostgresRepo
	commitmentsTable string
}

func NewMessagesRepo(table, commitmentsTable string, db *db.DB) entity.MessagesRepo {
	return &messagesRepo{
		basePostgresRepo: newBasePostgresRepo(table, db),
		commitmentsTable: commitmentsTable,
	}
}

func (r *messagesRepo) Create(ctx context.Context, msg *entity.BridgeMessage) error {
	return r.db.InTx(ctx, func(tx db.Tx) error {
		q, args, err := sq.Insert(r.commitmentsTable).
			Columns("commitment_hash").
			Values(msg.CommitmentHash).
			Suffix("ON CONFLICT (commitment_hash) DO NOTHING").
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("can't insert commitment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("can't get affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("commitment %s: %w", msg.CommitmentHash, entity.ErrReplayDetected)
		}

		q, args, err = sq.Insert(r.table).
			Columns("message_id", "commitment_hash", "sequence", "sender", "target_address", "direction",
				"message_type", "origin", "status", "payload", "zk_proof", "public_inputs", "proof_verified", "fee",
				"gas_limit", "timestamp", "retry_count", "tx_hash", "remote_message_id", "l1_block_id",
				"bridge_status", "secondary_status", "last_error", "created_at", "last_updated").
			Values(msg.MessageID, msg.CommitmentHash, msg.Sequence, msg.Sender, msg.TargetAddress, msg.Direction,
				msg.MessageType, msg.Origin, msg.Status, msg.Payload, msg.ZKProof, msg.PublicInputs, msg.ProofVerified, msg.Fee,
				msg.GasLimit, msg.Timestamp, msg.RetryCount, msg.TxHash, msg.RemoteMessageID, msg.L1BlockID,
				msg.BridgeStatus, msg.SecondaryStatus, msg.LastError, msg.CreatedAt, msg.LastUpdated).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("can't build query: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("can't insert message: %w", err)
		}
		return nil
	})
}

func (r *messagesRepo) GetByID(ctx context.Context, messageID common.Hash) (*entity.BridgeMessage, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"message_id": messageID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msg := new(entity.BridgeMessage)
	err = r.db.GetContext(ctx, msg, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("message %s: %w", messageID, entity.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("can't get message: %w", err)
	}
	return msg, nil
}

func (r *messagesRepo) Update(ctx context.Context, msg *entity.BridgeMessage, expected entity.MessageStatus) error {
	q, args, err := sq.Update(r.table).
		SetMap(map[string]interface{}{
			"status":            msg.Status,
			"zk_proof":          msg.ZKProof,
			"public_inputs":     msg.PublicInputs,
			"proof_verified":    msg.ProofVerified,
			"retry_count":       msg.RetryCount,
			"tx_hash":           msg.TxHash,
			"remote_message_id": msg.RemoteMessageID,
			"l1_block_id":       msg.L1BlockID,
			"bridge_status":     msg.BridgeStatus,
			"secondary_status":  msg.SecondaryStatus,
			"last_error":        msg.LastError,
			"last_updated":      msg.LastUpdated,
		}).
		Where(sq.Eq{"message_id": msg.MessageID, "status": expected}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't get affected rows: %w", err)
	}
	if n == 0 {
		if _, err = r.GetByID(ctx, msg.MessageID); err != nil {
			return err
		}
		return fmt.Errorf("message %s is no longer %s: %w", msg.MessageID, expected, entity.ErrStaleStatus)
	}
	return nil
}

func (r *messagesRepo) FindBySender(ctx context.Context, sender string) ([]*entity.BridgeMessage, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"sender": sender}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msgs := make([]*entity.BridgeMessage, 0, 10)
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find messages by sender: %w", err)
	}
	return msgs, nil
}

func (r *messagesRepo) FindByStatus(ctx context.Context, status entity.MessageStatus, direction entity.Direction, limit uint64) ([]*entity.BridgeMessage, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"status": status, "direction": direction}).
		OrderBy("created_at").
		Limit(limit).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msgs := make([]*entity.BridgeMessage, 0, limit)
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find messages by status: %w", err)
	}
	return msgs, nil
}

func (r *messagesRepo) CountPendingOlderThan(ctx context.Context, before time.Time) (map[entity.Direction]uint, error) {
	q, args, err := sq.Select("direction", "COUNT(*) AS count").
		From(r.table).
		Where(sq.Eq{"status": entity.StatusPending}).
		Where(sq.Lt{"created_at": before}).
		GroupBy("direction").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var rows []struct {
		Direction entity.Direction `db:"direction"`
		Count     uint             `db:"count"`
	}
	err = r.db.SelectContext(ctx, &rows, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't count pending messages: %w", err)
	}
	res := make(map[entity.Direction]uint, len(rows))
	for _, row := range rows {
		res[row.Direction] = row.Count
	}
	return res, nil
}

func (r *messagesRepo) HasCommitment(ctx context.Context, commitment common.Hash) (bool, error) {
	q, args, err := sq.Select("commitment_hash").
		From(r.commitmentsTable).
		Where(sq.Eq{"commitment_hash": commitment}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var found common.Hash
	err = r.db.GetContext(ctx, &found, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("can't get commitment: %w", err)
	}
	return true, nil
}

func (r *messagesRepo) MaxSequence(ctx context.Context) (uint64, error) {
	q, args, err := sq.Select("COALESCE(MAX(sequence), 0)").
		From(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var seq uint64
	if err = r.db.GetContext(ctx, &seq, q, args...); err != nil {
		return 0, fmt.Errorf("can't get max sequence: %w", err)
	}
	return seq, nil
}
