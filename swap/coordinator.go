package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/cache"
	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/contract"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/events"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/resilience"
	"github.com/poanetwork/layer-bridge/utils"
)

var ErrSwapBusy = errors.New("swap is being processed")

// L2Escrow is the swap escrow part of the L2 bridge contract.
type L2Escrow interface {
	LockSwap(ctx context.Context, swapID common.Hash, recipient common.Address, timelock time.Time, amount *big.Int, onSigned func(common.Hash) error) (common.Hash, error)
	CancelSwap(ctx context.Context, swapID common.Hash, onSigned func(common.Hash) error) (common.Hash, error)
	GetSwapStatus(ctx context.Context, swapID common.Hash) (contract.EscrowStatus, error)
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type L1Ledger interface {
	Transfer(ctx context.Context, transfer *l1client.Transfer) (string, error)
	BlockMetadata(ctx context.Context, blockID string) (*l1client.BlockMetadata, error)
}

type Request struct {
	Initiator   string
	AmountL1    *big.Int
	RecipientL1 string
	AmountL2    *big.Int
	RecipientL2 string
	// Timelock defaults to now plus the configured default timelock.
	Timelock time.Time
}

type Options struct {
	Config   *config.Config
	Swaps    entity.SwapsRepo
	L2       L2Escrow
	L1       L1Ledger
	Breakers *breaker.Set
	Cache    cache.StatusCache
	Bus      *events.Bus
	Logger   logging.Logger
}

// Coordinator runs two-leg swaps: an L2 escrow lock followed by an L1 transfer.
// A lock whose L1 leg fails is always refunded through the escrow.
type Coordinator struct {
	cfg     *config.Config
	swaps   entity.SwapsRepo
	l2      L2Escrow
	l1      L1Ledger
	breaker *breaker.Breaker
	cache   cache.StatusCache
	bus     *events.Bus
	admins  map[common.Address]bool

	mu     sync.Mutex
	active map[common.Hash]struct{}

	now    func() time.Time
	logger logging.Logger
}

func NewCoordinator(opts Options) *Coordinator {
	admins := make(map[common.Address]bool, len(opts.Config.Admins))
	for _, a := range opts.Config.Admins {
		admins[a] = true
	}
	return &Coordinator{
		cfg:     opts.Config,
		swaps:   opts.Swaps,
		l2:      opts.L2,
		l1:      opts.L1,
		breaker: opts.Breakers.Get(entity.RouteSwap),
		cache:   opts.Cache,
		bus:     opts.Bus,
		admins:  admins,
		active:  make(map[common.Hash]struct{}),
		now:     time.Now,
		logger:  opts.Logger.WithField("service", "swap"),
	}
}

func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Coordinator) acquire(swapID common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[swapID]; ok {
		return false
	}
	c.active[swapID] = struct{}{}
	return true
}

func (c *Coordinator) release(swapID common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, swapID)
}

func (c *Coordinator) newSwap(req *Request) (*entity.SwapRecord, error) {
	if !c.cfg.L1.IsActive() {
		return nil, fmt.Errorf("l1 is %s: %w", c.cfg.L1.Status, entity.ErrChainInactive)
	}
	if !c.cfg.L2.IsActive() {
		return nil, fmt.Errorf("l2 is %s: %w", c.cfg.L2.Status, entity.ErrChainInactive)
	}
	if req.Initiator == "" {
		return nil, fmt.Errorf("%w: initiator is required", entity.ErrValidation)
	}
	if req.AmountL1 == nil || req.AmountL1.Sign() <= 0 {
		return nil, fmt.Errorf("%w: l1 amount must be positive", entity.ErrValidation)
	}
	if req.AmountL2 == nil || req.AmountL2.Sign() <= 0 {
		return nil, fmt.Errorf("%w: l2 amount must be positive", entity.ErrValidation)
	}
	if err := utils.ValidateL1Address(req.RecipientL1, c.cfg.L1.Bech32HRP); err != nil {
		return nil, fmt.Errorf("%w: l1 recipient: %v", entity.ErrValidation, err)
	}
	if err := utils.ValidateL2Address(req.RecipientL2); err != nil {
		return nil, fmt.Errorf("%w: l2 recipient: %v", entity.ErrValidation, err)
	}

	now := c.now()
	timelock := req.Timelock
	if timelock.IsZero() {
		timelock = now.Add(c.cfg.Swap.DefaultTimelock)
	}
	if !timelock.After(now) {
		return nil, fmt.Errorf("%w: timelock %s is in the past", entity.ErrValidation, timelock.Format(time.RFC3339))
	}

	id := uuid.New()
	return &entity.SwapRecord{
		SwapID:      crypto.Keccak256Hash(id[:]),
		Initiator:   req.Initiator,
		AmountL1:    entity.NewWei(req.AmountL1),
		RecipientL1: req.RecipientL1,
		AmountL2:    entity.NewWei(req.AmountL2),
		RecipientL2: common.HexToAddress(req.RecipientL2),
		Timelock:    timelock.UTC().Truncate(time.Second),
		L1Status:    entity.LegPending,
		L2Status:    entity.LegPending,
		Status:      entity.SwapPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AtomicSwap creates a swap and drives it as far as the chains allow within the lock
// timeout. A swap returned without error may still be pending; the reconciler
// finishes it.
func (c *Coordinator) AtomicSwap(ctx context.Context, req *Request) (*entity.SwapRecord, error) {
	swap, err := c.newSwap(req)
	if err != nil {
		return nil, err
	}
	c.acquire(swap.SwapID)
	defer c.release(swap.SwapID)

	if err = c.swaps.Create(ctx, swap); err != nil {
		return nil, fmt.Errorf("can't create swap: %w", err)
	}
	logger := c.logger.WithFields(logrus.Fields{
		"swap_id":   swap.SwapID,
		"initiator": swap.Initiator,
		"timelock":  swap.Timelock,
	})
	logger.Info("created atomic swap")
	c.cacheSwap(ctx, swap)
	c.publish(swap)

	if err = c.lockL2(ctx, swap); err != nil {
		return swap, err
	}
	receipt := c.awaitReceipt(ctx, *swap.L2TxHash)
	if receipt == nil {
		logger.Info("l2 lock is not mined yet, swap is left to the reconciler")
		return swap, nil
	}
	if err = c.applyLock(ctx, swap, receipt); err != nil {
		return swap, err
	}
	if err = c.sendL1(ctx, swap); err != nil {
		return swap, err
	}
	return swap, nil
}

func (c *Coordinator) lockL2(ctx context.Context, swap *entity.SwapRecord) error {
	logger := c.logger.WithField("swap_id", swap.SwapID)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.l2.LockSwap(ctx, swap.SwapID, swap.RecipientL2, swap.Timelock, swap.AmountL2.BigInt(), func(txHash common.Hash) error {
			swap.L2TxHash = &txHash
			return c.save(ctx, swap)
		})
		return err
	})
	if err == nil {
		logger.WithField("tx_hash", swap.L2TxHash).Info("sent l2 escrow lock")
		return nil
	}
	swap.LastError = err.Error()
	if errors.Is(err, resilience.ErrTimeout) {
		logger.WithError(err).Warn("l2 lock outcome is unknown, waiting for receipt")
		c.trySave(ctx, swap)
		return err
	}
	logger.WithError(err).Error("can't lock l2 leg")
	// The lock was never accepted, so nothing is held on L2.
	swap.L2TxHash = nil
	c.finish(ctx, swap, entity.SwapCancelled)
	return fmt.Errorf("can't lock l2 leg: %w", err)
}

// awaitReceipt polls for a mined receipt until the lock timeout. It returns nil when
// the transaction is still pending.
func (c *Coordinator) awaitReceipt(ctx context.Context, txHash common.Hash) *types.Receipt {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Swap.LockTimeout)
	defer cancel()
	var receipt *types.Receipt
	utils.PollUntil(ctx, c.cfg.Swap.PollInterval, func(ctx context.Context) bool {
		var err error
		if receipt, err = c.l2.Receipt(ctx, txHash); err != nil {
			c.logger.WithError(err).WithField("tx_hash", txHash).Debug("can't get receipt")
		}
		return receipt != nil
	})
	return receipt
}

func (c *Coordinator) applyLock(ctx context.Context, swap *entity.SwapRecord, receipt *types.Receipt) error {
	if receipt.Status != types.ReceiptStatusSuccessful {
		swap.LastError = fmt.Sprintf("l2 lock transaction %s reverted", receipt.TxHash)
		c.logger.WithField("swap_id", swap.SwapID).Warn("l2 lock reverted")
		swap.L2TxHash = nil
		c.finish(ctx, swap, entity.SwapCancelled)
		return fmt.Errorf("%w: l2 lock reverted", entity.ErrExecutionFailed)
	}
	swap.L2Status = entity.LegConfirmed
	swap.LastError = ""
	c.logger.WithField("swap_id", swap.SwapID).Info("l2 leg confirmed")
	return c.save(ctx, swap)
}

func (c *Coordinator) sendL1(ctx context.Context, swap *entity.SwapRecord) error {
	logger := c.logger.WithField("swap_id", swap.SwapID)
	metadata, err := EncodeMetadata(swap)
	if err != nil {
		return err
	}
	var blockID string
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		blockID, err = c.l1.Transfer(ctx, &l1client.Transfer{
			Recipient: swap.RecipientL1,
			Amount:    swap.AmountL1.String(),
			Tag:       c.cfg.Swap.Tag,
			Metadata:  metadata,
		})
		return err
	})
	switch {
	case err == nil:
		swap.L1BlockID = &blockID
		swap.L1Status = entity.LegPending
		swap.LastError = ""
		logger.WithField("l1_block_id", blockID).Info("sent l1 leg, waiting for finality")
		return c.save(ctx, swap)
	case errors.Is(err, resilience.ErrTimeout):
		swap.L1Status = entity.LegUnknown
		swap.LastError = err.Error()
		logger.WithError(err).Warn("l1 transfer outcome is unknown")
		c.trySave(ctx, swap)
		return err
	default:
		logger.WithError(err).Error("l1 leg failed, refunding l2 lock")
		swap.LastError = err.Error()
		c.compensate(ctx, swap, entity.SwapCancelled)
		return fmt.Errorf("l1 leg failed, swap cancelled: %w", err)
	}
}

// compensate moves the swap to a final status and refunds the L2 escrow when a lock
// transaction was sent. An unfinished refund stays flagged for the reconciler.
func (c *Coordinator) compensate(ctx context.Context, swap *entity.SwapRecord, final entity.SwapStatus) {
	if swap.L2TxHash == nil {
		c.finish(ctx, swap, final)
		return
	}
	swap.Status = final
	if swap.L1Status != entity.LegConfirmed {
		swap.L1Status = legStatusFor(final)
	}
	swap.RefundPending = true
	swap.RefundTxHash = nil
	SwapsTotal.WithLabelValues(string(final)).Inc()
	c.refundL2(ctx, swap)
}

func (c *Coordinator) refundL2(ctx context.Context, swap *entity.SwapRecord) {
	logger := c.logger.WithField("swap_id", swap.SwapID)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.l2.CancelSwap(ctx, swap.SwapID, func(txHash common.Hash) error {
			swap.RefundTxHash = &txHash
			return c.save(ctx, swap)
		})
		return err
	})
	if err != nil {
		CompensationsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("can't refund l2 lock, will retry")
		swap.LastError = err.Error()
		if !errors.Is(err, resilience.ErrTimeout) {
			swap.RefundTxHash = nil
		}
		c.trySave(ctx, swap)
		return
	}
	receipt := c.awaitReceipt(ctx, *swap.RefundTxHash)
	if receipt != nil && receipt.Status == types.ReceiptStatusSuccessful {
		swap.RefundPending = false
		swap.L2Status = entity.LegCancelled
		CompensationsTotal.WithLabelValues("refunded").Inc()
		logger.WithField("tx_hash", swap.RefundTxHash).Info("refunded l2 lock")
	} else {
		CompensationsTotal.WithLabelValues("pending").Inc()
		logger.WithField("tx_hash", swap.RefundTxHash).Warn("l2 refund is not confirmed yet")
	}
	c.trySave(ctx, swap)
}

// finish closes a swap that holds nothing on L2.
func (c *Coordinator) finish(ctx context.Context, swap *entity.SwapRecord, final entity.SwapStatus) {
	swap.Status = final
	swap.L2Status = legStatusFor(final)
	if swap.L1Status != entity.LegConfirmed {
		swap.L1Status = legStatusFor(final)
	}
	swap.RefundPending = false
	SwapsTotal.WithLabelValues(string(final)).Inc()
	c.trySave(ctx, swap)
}

func legStatusFor(status entity.SwapStatus) entity.LegStatus {
	if status == entity.SwapExpired {
		return entity.LegExpired
	}
	return entity.LegCancelled
}

// Cancel aborts a swap before either leg is confirmed. Only the initiator or an
// administrator may cancel.
func (c *Coordinator) Cancel(ctx context.Context, caller string, swapID common.Hash) (*entity.SwapRecord, error) {
	swap, err := c.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !sameAccount(caller, swap.Initiator) && !c.isAdmin(caller) {
		logging.Security(c.logger, "unauthorized_swap_cancel").WithFields(logrus.Fields{
			"swap_id": swapID,
			"caller":  caller,
		}).Warn("rejected swap cancel")
		return nil, fmt.Errorf("%s can't cancel swap %s: %w", caller, swapID, entity.ErrUnauthorized)
	}
	if !c.acquire(swapID) {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidTransition, ErrSwapBusy)
	}
	defer c.release(swapID)
	if swap, err = c.swaps.GetByID(ctx, swapID); err != nil {
		return nil, err
	}
	if swap.Status != entity.SwapPending {
		return nil, fmt.Errorf("swap %s is %s: %w", swapID, swap.Status, entity.ErrInvalidTransition)
	}
	if swap.L2Status == entity.LegConfirmed || swap.L1BlockID != nil || swap.L1Status != entity.LegPending {
		return nil, fmt.Errorf("swap %s has a leg in progress: %w", swapID, entity.ErrInvalidTransition)
	}
	c.logger.WithFields(logrus.Fields{"swap_id": swapID, "caller": caller}).Info("cancelling swap")
	c.compensate(ctx, swap, entity.SwapCancelled)
	return swap, nil
}

// Refund releases the L2 lock of an expired swap whose L1 leg was not delivered.
// Either party of the swap or an administrator may trigger it.
func (c *Coordinator) Refund(ctx context.Context, caller string, swapID common.Hash) (*entity.SwapRecord, error) {
	swap, err := c.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !c.isParty(caller, swap) && !c.isAdmin(caller) {
		logging.Security(c.logger, "unauthorized_swap_refund").WithFields(logrus.Fields{
			"swap_id": swapID,
			"caller":  caller,
		}).Warn("rejected swap refund")
		return nil, fmt.Errorf("%s can't refund swap %s: %w", caller, swapID, entity.ErrUnauthorized)
	}
	if !c.acquire(swapID) {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidTransition, ErrSwapBusy)
	}
	defer c.release(swapID)
	if swap, err = c.swaps.GetByID(ctx, swapID); err != nil {
		return nil, err
	}

	switch {
	case swap.RefundPending:
		c.refundL2(ctx, swap)
		return swap, nil
	case swap.Status != entity.SwapPending:
		return nil, fmt.Errorf("swap %s is %s: %w", swapID, swap.Status, entity.ErrInvalidTransition)
	case !swap.Expired(c.now()):
		return nil, fmt.Errorf("swap %s is locked until %s: %w", swapID, swap.Timelock.Format(time.RFC3339), entity.ErrTimelockNotExpired)
	case swap.L1BlockID != nil:
		return nil, fmt.Errorf("swap %s l1 leg was delivered: %w", swapID, entity.ErrInvalidTransition)
	}
	c.logger.WithFields(logrus.Fields{"swap_id": swapID, "caller": caller}).Info("refunding expired swap")
	c.compensate(ctx, swap, entity.SwapExpired)
	return swap, nil
}

func (c *Coordinator) isAdmin(caller string) bool {
	return common.IsHexAddress(caller) && c.admins[common.HexToAddress(caller)]
}

func (c *Coordinator) isParty(caller string, swap *entity.SwapRecord) bool {
	if sameAccount(caller, swap.Initiator) || strings.EqualFold(caller, swap.RecipientL1) {
		return true
	}
	return common.IsHexAddress(caller) && common.HexToAddress(caller) == swap.RecipientL2
}

func sameAccount(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

func (c *Coordinator) save(ctx context.Context, swap *entity.SwapRecord) error {
	swap.UpdatedAt = c.now()
	if err := c.swaps.Update(ctx, swap); err != nil {
		return fmt.Errorf("can't save swap %s: %w", swap.SwapID, err)
	}
	c.cacheSwap(ctx, swap)
	c.publish(swap)
	return nil
}

func (c *Coordinator) trySave(ctx context.Context, swap *entity.SwapRecord) {
	if err := c.save(ctx, swap); err != nil {
		c.logger.WithError(err).Error("can't record swap state")
	}
}

func (c *Coordinator) cacheSwap(ctx context.Context, swap *entity.SwapRecord) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetSwap(ctx, swap); err != nil {
		c.logger.WithError(err).WithField("swap_id", swap.SwapID).Debug("can't cache swap")
	}
}

func (c *Coordinator) publish(swap *entity.SwapRecord) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Type:       events.SwapUpdated,
		SwapID:     swap.SwapID,
		SwapStatus: swap.Status,
	})
}
