package cache

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

// StatusCache keeps recent message and swap snapshots for read paths.
// A miss is reported as (nil, nil).
type StatusCache interface {
	GetMessage(ctx context.Context, messageID common.Hash) (*entity.BridgeMessage, error)
	SetMessage(ctx context.Context, msg *entity.BridgeMessage) error
	GetSwap(ctx context.Context, swapID common.Hash) (*entity.SwapRecord, error)
	SetSwap(ctx context.Context, swap *entity.SwapRecord) error
}
