package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/poanetwork/layer-bridge/entity"
)

type StatusSource string

const (
	SourceRegistry StatusSource = "registry"
	SourceCache    StatusSource = "cache"
	SourceChain    StatusSource = "chain"
)

// MessageStatus is the merged view of a message across the registry, the status
// cache and the live chains.
type MessageStatus struct {
	MessageID       common.Hash           `json:"messageId"`
	Status          entity.MessageStatus  `json:"status"`
	Direction       entity.Direction      `json:"direction"`
	MessageType     entity.MessageType    `json:"messageType"`
	Origin          entity.MessageOrigin  `json:"origin"`
	Source          StatusSource          `json:"source"`
	ProofVerified   bool                  `json:"proofVerified"`
	RetryCount      uint                  `json:"retryCount"`
	BridgeStatus    entity.DeliveryStatus `json:"bridgeStatus,omitempty"`
	SecondaryStatus entity.DeliveryStatus `json:"secondaryStatus,omitempty"`
	TxHash          *common.Hash          `json:"txHash,omitempty"`
	RemoteMessageID *common.Hash          `json:"remoteMessageId,omitempty"`
	L1BlockID       *string               `json:"l1BlockId,omitempty"`
	L1Finalized     *bool                 `json:"l1Finalized,omitempty"`
	ChainStatus     *entity.MessageStatus `json:"chainStatus,omitempty"`
	LastError       string                `json:"lastError,omitempty"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func newMessageStatus(msg *entity.BridgeMessage, source StatusSource) *MessageStatus {
	return &MessageStatus{
		MessageID:       msg.MessageID,
		Status:          msg.Status,
		Direction:       msg.Direction,
		MessageType:     msg.MessageType,
		Origin:          msg.Origin,
		Source:          source,
		ProofVerified:   msg.ProofVerified,
		RetryCount:      msg.RetryCount,
		BridgeStatus:    msg.BridgeStatus,
		SecondaryStatus: msg.SecondaryStatus,
		TxHash:          msg.TxHash,
		RemoteMessageID: msg.RemoteMessageID,
		L1BlockID:       msg.L1BlockID,
		LastError:       msg.LastError,
		UpdatedAt:       msg.LastUpdated,
	}
}

// GetMessageStatus reports the status of a message. The registry record is enriched
// with live chain state; when the registry can't be reached the cached record is used.
// Chain lookups are bounded by the call timeout and never fail the query.
func (r *Relayer) GetMessageStatus(ctx context.Context, messageID common.Hash) (*MessageStatus, error) {
	msg, err := r.registry.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, entity.ErrMessageNotFound) || r.cache == nil {
			return nil, err
		}
		cached, cacheErr := r.cache.GetMessage(ctx, messageID)
		if cacheErr != nil || cached == nil {
			return nil, err
		}
		r.logger.WithError(err).WithField("message_id", messageID).Warn("registry is unavailable, serving cached status")
		return newMessageStatus(cached, SourceCache), nil
	}
	view := newMessageStatus(msg, SourceRegistry)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Resilience.CallTimeout)
	defer cancel()
	logger := r.logger.WithField("message_id", messageID)
	if msg.RemoteMessageID != nil {
		details, err := r.l2.GetMessageDetails(ctx, *msg.RemoteMessageID)
		if err != nil {
			logger.WithError(err).Debug("can't read message from l2")
		} else {
			view.ChainStatus = &details.Status
			if details.Status != msg.Status && details.Status != entity.StatusPending {
				view.Status = details.Status
				view.Source = SourceChain
			}
		}
	}
	if msg.L1BlockID != nil {
		meta, err := r.l1.BlockMetadata(ctx, *msg.L1BlockID)
		if err != nil {
			logger.WithError(err).Debug("can't read l1 block metadata")
		} else {
			final := meta.IsFinal(r.cfg.L1.FinalityDepth)
			view.L1Finalized = &final
		}
	}
	r.cacheMessage(ctx, msg)
	return view, nil
}

// GetUserMessages lists ids of messages sent by address, newest first.
func (r *Relayer) GetUserMessages(ctx context.Context, address string) ([]common.Hash, error) {
	msgs, err := r.registry.FindBySender(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 && common.IsHexAddress(address) {
		// Senders may use any hex casing.
		checksum := common.HexToAddress(address).Hex()
		if checksum != address {
			if msgs, err = r.registry.FindBySender(ctx, checksum); err != nil {
				return nil, err
			}
		}
	}
	ids := make([]common.Hash, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.MessageID
	}
	return ids, nil
}

type MessageDetails struct {
	MessageID     common.Hash          `json:"messageId"`
	Status        entity.MessageStatus `json:"status"`
	Sender        string               `json:"sender"`
	Timestamp     uint64               `json:"timestamp"`
	MessageType   entity.MessageType   `json:"messageType"`
	ProofVerified bool                 `json:"proofVerified"`
}

// GetMessageDetails returns the registry record of messageID, or the L2 contract record
// for a message that was sent on chain and not ingested yet.
func (r *Relayer) GetMessageDetails(ctx context.Context, messageID common.Hash) (*MessageDetails, error) {
	msg, err := r.registry.Get(ctx, messageID)
	if err == nil {
		return &MessageDetails{
			MessageID:     msg.MessageID,
			Status:        msg.Status,
			Sender:        msg.Sender,
			Timestamp:     msg.Timestamp,
			MessageType:   msg.MessageType,
			ProofVerified: msg.ProofVerified,
		}, nil
	}
	if !errors.Is(err, entity.ErrMessageNotFound) {
		return nil, err
	}
	details, chainErr := r.l2.GetMessageDetails(ctx, messageID)
	if chainErr != nil || details.Sender == (common.Address{}) {
		return nil, err
	}
	return &MessageDetails{
		MessageID:     messageID,
		Status:        details.Status,
		Sender:        details.Sender.Hex(),
		Timestamp:     details.Timestamp,
		MessageType:   details.MessageType,
		ProofVerified: details.ProofVerified,
	}, nil
}
