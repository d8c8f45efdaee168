package relayer

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/poanetwork/layer-bridge/entity"
)

// Envelope is the wire form of a message carried by an L1 tagged block or the
// secondary channel. Relayers on both sides exchange the same shape.
type Envelope struct {
	MessageID     common.Hash        `json:"messageId"`
	Direction     entity.Direction   `json:"direction"`
	Sender        string             `json:"sender"`
	TargetAddress string             `json:"targetAddress"`
	MessageType   entity.MessageType `json:"messageType"`
	Payload       hexutil.Bytes      `json:"payload"`
	ZKProof       hexutil.Bytes      `json:"zkProof,omitempty"`
	PublicInputs  hexutil.Bytes      `json:"publicInputs,omitempty"`
	Timestamp     uint64             `json:"timestamp"`
	Sequence      uint64             `json:"sequence"`
	GasLimit      uint64             `json:"gasLimit,omitempty"`
	Signatures    []hexutil.Bytes    `json:"signatures,omitempty"`
}

func NewEnvelope(msg *entity.BridgeMessage, sigs [][]byte) *Envelope {
	e := &Envelope{
		MessageID:     msg.MessageID,
		Direction:     msg.Direction,
		Sender:        msg.Sender,
		TargetAddress: msg.TargetAddress,
		MessageType:   msg.MessageType,
		Payload:       msg.Payload,
		ZKProof:       msg.ZKProof,
		PublicInputs:  msg.PublicInputs,
		Timestamp:     msg.Timestamp,
		Sequence:      msg.Sequence,
		GasLimit:      msg.GasLimit,
	}
	for _, sig := range sigs {
		e.Signatures = append(e.Signatures, sig)
	}
	return e
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	e := new(Envelope)
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("can't decode envelope: %w", err)
	}
	return e, nil
}

// Inbound converts the envelope into a message received from L1.
func (e *Envelope) Inbound(source string) *InboundMessage {
	sigs := make([][]byte, len(e.Signatures))
	for i, sig := range e.Signatures {
		sigs[i] = sig
	}
	return &InboundMessage{
		Sender:        e.Sender,
		TargetAddress: e.TargetAddress,
		MessageType:   e.MessageType,
		Payload:       e.Payload,
		ZKProof:       e.ZKProof,
		PublicInputs:  e.PublicInputs,
		L1Timestamp:   e.Timestamp,
		Sequence:      e.Sequence,
		GasLimit:      e.GasLimit,
		Signatures:    sigs,
		Source:        source,
	}
}
