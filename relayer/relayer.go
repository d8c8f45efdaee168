package relayer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/cache"
	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/oracle"
	"github.com/poanetwork/layer-bridge/pubsub"
	"github.com/poanetwork/layer-bridge/registry"
	"github.com/poanetwork/layer-bridge/zkgate"
)

// L2Bridge is the part of the L2 bridge contract used by the relayer.
type L2Bridge interface {
	ProcessMessageFromL1(ctx context.Context, msg *entity.BridgeMessage, sigs [][]byte, onSigned func(common.Hash) error) (common.Hash, error)
	ConfirmL2ToL1Message(ctx context.Context, messageID common.Hash, success bool, sigs [][]byte, onSigned func(common.Hash) error) (common.Hash, error)
	CancelMessage(ctx context.Context, messageID common.Hash) (common.Hash, error)
	GetMessageDetails(ctx context.Context, messageID common.Hash) (*contract.MessageDetails, error)
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ParseProcessed(receipt *types.Receipt) (*contract.ProcessedEvent, error)
	BlockNumber(ctx context.Context) (uint64, error)
	MessageSentEvents(ctx context.Context, from, to uint64) ([]*contract.SentEvent, error)
}

// L1Ledger is the part of the L1 gateway used by the relayer.
type L1Ledger interface {
	SubmitBlock(ctx context.Context, tag string, data []byte) (string, error)
	Transfer(ctx context.Context, transfer *l1client.Transfer) (string, error)
	BlockMetadata(ctx context.Context, blockID string) (*l1client.BlockMetadata, error)
	BlocksByTag(ctx context.Context, tag string, fromIndex uint64, limit uint) ([]*l1client.TaggedBlock, error)
}

// Refunder returns the fee of a message that will not be delivered to its sender.
type Refunder interface {
	Refund(ctx context.Context, msg *entity.BridgeMessage) (string, error)
}

type Options struct {
	Config    *config.Config
	Registry  *registry.Registry
	Oracle    *oracle.Verifier
	Attestor  oracle.Attestor
	Breakers  *breaker.Set
	Gate      *zkgate.Gate
	Handlers  *Handlers
	L2        L2Bridge
	L1        L1Ledger
	Refunder  Refunder
	Secondary pubsub.Channel
	Sealer    *pubsub.Sealer
	Cache     cache.StatusCache
	Bus       *events.Bus
	Cursors   entity.CursorsRepo
	Logger    logging.Logger
}

// Relayer moves messages between L1 and L2 and drives their status machine.
type Relayer struct {
	cfg       *config.Config
	fees      FeeSchedule
	admins    map[common.Address]bool
	registry  *registry.Registry
	oracle    *oracle.Verifier
	attestor  oracle.Attestor
	breakers  *breaker.Set
	gate      *zkgate.Gate
	handlers  *Handlers
	l2        L2Bridge
	l1        L1Ledger
	refunder  Refunder
	secondary pubsub.Channel
	sealer    *pubsub.Sealer
	cache     cache.StatusCache
	bus       *events.Bus
	cursors   entity.CursorsRepo
	now       func() time.Time
	logger    logging.Logger

	mu     sync.Mutex
	active map[common.Hash]struct{}
}

func New(opts Options) *Relayer {
	admins := make(map[common.Address]bool, len(opts.Config.Admins))
	for _, a := range opts.Config.Admins {
		admins[a] = true
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = NewHandlers()
	}
	return &Relayer{
		cfg:       opts.Config,
		fees:      NewFeeSchedule(opts.Config.Fees),
		admins:    admins,
		registry:  opts.Registry,
		oracle:    opts.Oracle,
		attestor:  opts.Attestor,
		breakers:  opts.Breakers,
		gate:      opts.Gate,
		handlers:  handlers,
		l2:        opts.L2,
		l1:        opts.L1,
		refunder:  opts.Refunder,
		secondary: opts.Secondary,
		sealer:    opts.Sealer,
		cache:     opts.Cache,
		bus:       opts.Bus,
		cursors:   opts.Cursors,
		now:       time.Now,
		logger:    opts.Logger.WithField("service", "relayer"),
		active:    make(map[common.Hash]struct{}),
	}
}

func (r *Relayer) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Relayer) Fees() FeeSchedule {
	return r.fees
}

// IsAdmin reports whether caller is one of the configured bridge administrators.
func (r *Relayer) IsAdmin(caller string) bool {
	if !common.IsHexAddress(caller) {
		return false
	}
	return r.admins[common.HexToAddress(caller)]
}

func sameAccount(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

func (r *Relayer) cacheMessage(ctx context.Context, msg *entity.BridgeMessage) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetMessage(ctx, msg); err != nil {
		r.logger.WithError(err).WithField("message_id", msg.MessageID).Debug("can't cache message status")
	}
}

func (r *Relayer) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func (r *Relayer) publishMessage(t events.Type, msg *entity.BridgeMessage, actor string) {
	r.publish(events.Event{
		Type:       t,
		MessageID:  msg.MessageID,
		Direction:  msg.Direction,
		Success:    msg.Status == entity.StatusProcessed,
		ZKVerified: msg.ProofVerified,
		Actor:      actor,
	})
}

// attest collects oracle signatures over the message id. Without an attestor the
// message is sent unsigned and the receiving side decides whether to accept it.
func (r *Relayer) attest(ctx context.Context, msg *entity.BridgeMessage) ([][]byte, error) {
	if r.attestor == nil {
		return nil, nil
	}
	sigs, err := r.attestor.Attest(ctx, msg.MessageID)
	if err != nil {
		return nil, fmt.Errorf("can't attest message: %w", err)
	}
	return sigs, nil
}

func feeOf(msg *entity.BridgeMessage) *big.Int {
	return msg.Fee.BigInt()
}
