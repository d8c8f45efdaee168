package cache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/entity"
)

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	msg := &entity.BridgeMessage{MessageID: common.Hash{1}, Status: entity.StatusPending, Fee: entity.NewWei(big.NewInt(5))}
	require.NoError(t, m.SetMessage(ctx, msg))
	msg.Status = entity.StatusProcessed

	cached, err := m.GetMessage(ctx, common.Hash{1})
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, cached.Status, "cache must hold a copy")

	miss, err := m.GetMessage(ctx, common.Hash{2})
	require.NoError(t, err)
	require.Nil(t, miss)

	swap := &entity.SwapRecord{SwapID: common.Hash{3}, Status: entity.SwapPending}
	require.NoError(t, m.SetSwap(ctx, swap))
	got, err := m.GetSwap(ctx, common.Hash{3})
	require.NoError(t, err)
	require.Equal(t, entity.SwapPending, got.Status)

	now = now.Add(2 * time.Minute)
	cached, err = m.GetMessage(ctx, common.Hash{1})
	require.NoError(t, err)
	require.Nil(t, cached, "entry must expire")
}
