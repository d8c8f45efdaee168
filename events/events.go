package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/poanetwork/layer-bridge/entity"
)

type Type string

const (
	MessageSent         Type = "message_sent"
	MessageProcessed    Type = "message_processed"
	MessageCanceled     Type = "message_canceled"
	ReplayRejected      Type = "replay_rejected"
	SwapUpdated         Type = "swap_updated"
	BreakerStateChanged Type = "breaker_state_changed"
)

type Event struct {
	ID         uuid.UUID
	Type       Type
	Time       time.Time
	MessageID  common.Hash
	Direction  entity.Direction
	Success    bool
	ZKVerified bool
	Actor      string
	SwapID     common.Hash
	SwapStatus entity.SwapStatus
	Route      entity.Route
	From       entity.BreakerState
	To         entity.BreakerState
}
