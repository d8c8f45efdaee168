package l1client

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type BlockState string

const (
	BlockPending     BlockState = "pending"
	BlockFinalized   BlockState = "finalized"
	BlockConflicting BlockState = "conflicting"
)

type BlockMetadata struct {
	BlockID       string     `json:"blockId"`
	State         BlockState `json:"state"`
	Confirmations uint64     `json:"confirmations"`
}

// IsFinal reports whether the block reached the required finality depth.
func (m *BlockMetadata) IsFinal(depth uint64) bool {
	return m.State == BlockFinalized && m.Confirmations >= depth
}

type TaggedBlock struct {
	Index     uint64        `json:"index"`
	BlockID   string        `json:"blockId"`
	Data      hexutil.Bytes `json:"data"`
	Timestamp uint64        `json:"timestamp"`
}

type Transfer struct {
	Recipient string        `json:"recipient"`
	Amount    string        `json:"amount"`
	Tag       string        `json:"tag"`
	Metadata  hexutil.Bytes `json:"metadata"`
}

type nodeHealth struct {
	Healthy bool `json:"healthy"`
}
