package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/repository/postgres"
)

func newMock(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return db.NewFromConn(conn, "postgres"), mock
}

func TestCursorsRepo(t *testing.T) {
	t.Parallel()
	conn, mock := newMock(t)
	repo := postgres.NewCursorsRepo("cursors", conn)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO cursors \(name,position\) VALUES \(\$1,\$2\) ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("l2_events", uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Ensure(ctx, &entity.Cursor{Name: "l2_events", Position: 42}))

	updated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM cursors WHERE name = \$1`).
		WithArgs("l2_events").
		WillReturnRows(sqlmock.NewRows([]string{"name", "position", "updated_at"}).AddRow("l2_events", 42, updated))
	cursor, err := repo.GetByName(ctx, "l2_events")
	require.NoError(t, err)
	require.Equal(t, &entity.Cursor{Name: "l2_events", Position: 42, UpdatedAt: updated}, cursor)

	mock.ExpectQuery(`SELECT \* FROM cursors WHERE name = \$1`).
		WithArgs("l1_tags").
		WillReturnRows(sqlmock.NewRows([]string{"name", "position", "updated_at"}))
	_, err = repo.GetByName(ctx, "l1_tags")
	require.ErrorIs(t, err, entity.ErrCursorNotFound)
}

func TestMessagesRepoCreateRejectsReplay(t *testing.T) {
	t.Parallel()
	conn, mock := newMock(t)
	repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)

	msg := &entity.BridgeMessage{
		MessageID:      common.HexToHash("0x01"),
		CommitmentHash: common.HexToHash("0x02"),
		Status:         entity.StatusPending,
	}
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO used_commitments \(commitment_hash\) VALUES \(\$1\) ON CONFLICT \(commitment_hash\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), msg)
	require.ErrorIs(t, err, entity.ErrReplayDetected)
}

func TestMessagesRepoCreate(t *testing.T) {
	t.Parallel()
	conn, mock := newMock(t)
	repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)

	msg := &entity.BridgeMessage{
		MessageID:      common.HexToHash("0x01"),
		CommitmentHash: common.HexToHash("0x02"),
		Status:         entity.StatusPending,
	}
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO used_commitments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages \(message_id,commitment_hash,sequence,`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), msg))
}

func TestMessagesRepoCreateRollsBackOnInsertError(t *testing.T) {
	t.Parallel()
	conn, mock := newMock(t)
	repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO used_commitments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &entity.BridgeMessage{Status: entity.StatusPending})
	require.ErrorContains(t, err, "can't insert message")
}

func TestMessagesRepoUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	msg := &entity.BridgeMessage{
		MessageID: common.HexToHash("0x01"),
		Status:    entity.StatusProcessed,
	}

	t.Run("applied", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMock(t)
		repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)
		mock.ExpectExec(`UPDATE messages SET .* WHERE message_id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Update(ctx, msg, entity.StatusPending))
	})

	t.Run("stale", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMock(t)
		repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)
		mock.ExpectExec(`UPDATE messages SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM messages WHERE message_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"message_id", "status"}).AddRow(msg.MessageID.Bytes(), string(entity.StatusCanceled)))
		require.ErrorIs(t, repo.Update(ctx, msg, entity.StatusPending), entity.ErrStaleStatus)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMock(t)
		repo := postgres.NewMessagesRepo("messages", "used_commitments", conn)
		mock.ExpectExec(`UPDATE messages SET`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM messages`).WillReturnRows(sqlmock.NewRows([]string{"message_id"}))
		require.ErrorIs(t, repo.Update(ctx, msg, entity.StatusPending), entity.ErrMessageNotFound)
	})
}
