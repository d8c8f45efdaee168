package presenter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/swap"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: can't decode request: %v", entity.ErrValidation, err)
	}
	return nil
}

func parseWei(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a decimal wei amount", entity.ErrValidation, name)
	}
	return v, nil
}

func (r *SwapRequest) toRequest() (*swap.Request, error) {
	amountL1, err := parseWei("amountL1", r.AmountL1)
	if err != nil {
		return nil, err
	}
	amountL2, err := parseWei("amountL2", r.AmountL2)
	if err != nil {
		return nil, err
	}
	req := &swap.Request{
		Initiator:   r.Initiator,
		AmountL1:    amountL1,
		RecipientL1: r.RecipientL1,
		AmountL2:    amountL2,
		RecipientL2: r.RecipientL2,
	}
	if r.Timelock != nil {
		req.Timelock = time.Unix(*r.Timelock, 0)
	}
	return req, nil
}

func newSwapResult(s *entity.SwapRecord) *SwapResult {
	return &SwapResult{
		SwapID:    s.SwapID,
		Status:    s.Status,
		L1Status:  s.L1Status,
		L2Status:  s.L2Status,
		Timelock:  s.Timelock,
		L2TxHash:  s.L2TxHash,
		L1BlockID: s.L1BlockID,
	}
}

func anyHealthy(records []entity.NodeHealthRecord) bool {
	for _, rec := range records {
		if rec.Healthy {
			return true
		}
	}
	return len(records) == 0
}
