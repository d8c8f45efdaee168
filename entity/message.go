package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Direction values match the on-chain enumeration.
type Direction uint8

const (
	DirectionL2ToL1 Direction = 0
	DirectionL1ToL2 Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionL2ToL1:
		return "L2ToL1"
	case DirectionL1ToL2:
		return "L1ToL2"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "L2ToL1":
		*d = DirectionL2ToL1
	case "L1ToL2":
		*d = DirectionL1ToL2
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// MessageStatus values match the on-chain enumeration.
type MessageStatus uint8

const (
	StatusPending   MessageStatus = 0
	StatusProcessed MessageStatus = 1
	StatusFailed    MessageStatus = 2
	StatusCanceled  MessageStatus = 3
)

func (s MessageStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessed:
		return "Processed"
	case StatusFailed:
		return "Failed"
	case StatusCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("MessageStatus(%d)", uint8(s))
	}
}

func (s MessageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MessageStatus) UnmarshalText(text []byte) error {
	for _, st := range []MessageStatus{StatusPending, StatusProcessed, StatusFailed, StatusCanceled} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown message status %q", text)
}

func (s MessageStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusCanceled
}

type MessageType string

const (
	MessageTypeRiskScoreUpdate MessageType = "RISK_SCORE_UPDATE"
	MessageTypeContractCall    MessageType = "CONTRACT_CALL"
	MessageTypeTokenTransfer   MessageType = "TOKEN_TRANSFER"
	MessageTypeIdentityUpdate  MessageType = "IDENTITY_UPDATE"
)

var knownMessageTypes = map[MessageType]bool{
	MessageTypeRiskScoreUpdate: true,
	MessageTypeContractCall:    true,
	MessageTypeTokenTransfer:   true,
	MessageTypeIdentityUpdate:  true,
}

func (t MessageType) IsKnown() bool {
	return knownMessageTypes[t]
}

// MessageTypes lists the known message types in a stable order.
func MessageTypes() []MessageType {
	return []MessageType{
		MessageTypeRiskScoreUpdate,
		MessageTypeContractCall,
		MessageTypeTokenTransfer,
		MessageTypeIdentityUpdate,
	}
}

type DeliveryStatus string

const (
	DeliveryNone      DeliveryStatus = ""
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliverySkipped   DeliveryStatus = "skipped"
	// DeliveryUnknown marks a submission that timed out and may still land.
	DeliveryUnknown DeliveryStatus = "unknown"
)

// MessageOrigin tells where a message entered the bridge.
type MessageOrigin string

const (
	// OriginAPI messages were submitted through the relayer operations.
	OriginAPI MessageOrigin = "api"
	// OriginL2Event messages were ingested from MessageSent events of the L2 bridge contract.
	OriginL2Event MessageOrigin = "l2_event"
	// OriginInbound messages arrived from L1 and are executed by local handlers.
	OriginInbound MessageOrigin = "inbound"
)

type BridgeMessage struct {
	MessageID       common.Hash    `db:"message_id"`
	CommitmentHash  common.Hash    `db:"commitment_hash"`
	Sequence        uint64         `db:"sequence"`
	Sender          string         `db:"sender"`
	TargetAddress   string         `db:"target_address"`
	Direction       Direction      `db:"direction"`
	MessageType     MessageType    `db:"message_type"`
	Origin          MessageOrigin  `db:"origin"`
	Status          MessageStatus  `db:"status"`
	Payload         []byte         `db:"payload"`
	ZKProof         []byte         `db:"zk_proof"`
	PublicInputs    []byte         `db:"public_inputs"`
	ProofVerified   bool           `db:"proof_verified"`
	Fee             Wei            `db:"fee"`
	GasLimit        uint64         `db:"gas_limit"`
	Timestamp       uint64         `db:"timestamp"`
	RetryCount      uint           `db:"retry_count"`
	TxHash          *common.Hash   `db:"tx_hash"`
	RemoteMessageID *common.Hash   `db:"remote_message_id"`
	L1BlockID       *string        `db:"l1_block_id"`
	BridgeStatus    DeliveryStatus `db:"bridge_status"`
	SecondaryStatus DeliveryStatus `db:"secondary_status"`
	LastError       string         `db:"last_error"`
	CreatedAt       time.Time      `db:"created_at"`
	LastUpdated     time.Time      `db:"last_updated"`
}

// Clone returns a copy safe to mutate without affecting the stored record.
func (m *BridgeMessage) Clone() *BridgeMessage {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	c.ZKProof = append([]byte(nil), m.ZKProof...)
	c.PublicInputs = append([]byte(nil), m.PublicInputs...)
	c.Fee = NewWei(&m.Fee.Int)
	if m.TxHash != nil {
		h := *m.TxHash
		c.TxHash = &h
	}
	if m.RemoteMessageID != nil {
		h := *m.RemoteMessageID
		c.RemoteMessageID = &h
	}
	if m.L1BlockID != nil {
		id := *m.L1BlockID
		c.L1BlockID = &id
	}
	return &c
}

type MessagesRepo interface {
	// Create consumes msg.CommitmentHash and stores msg atomically.
	// It returns ErrReplayDetected if the commitment was already used.
	Create(ctx context.Context, msg *BridgeMessage) error
	GetByID(ctx context.Context, messageID common.Hash) (*BridgeMessage, error)
	// Update stores msg if the persisted status still equals expected.
	Update(ctx context.Context, msg *BridgeMessage, expected MessageStatus) error
	FindBySender(ctx context.Context, sender string) ([]*BridgeMessage, error)
	FindByStatus(ctx context.Context, status MessageStatus, direction Direction, limit uint64) ([]*BridgeMessage, error)
	CountPendingOlderThan(ctx context.Context, before time.Time) (map[Direction]uint, error)
	HasCommitment(ctx context.Context, commitment common.Hash) (bool, error)
	MaxSequence(ctx context.Context) (uint64, error)
}
