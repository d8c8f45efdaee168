package ethclient

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/rpc"
)

// IsNonRetryable reports whether err is a deterministic rejection by the node
// rather than a transport failure.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrNonceTooLow) || errors.Is(err, core.ErrInsufficientFunds) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"execution reverted", "insufficient funds", "nonce too low", "intrinsic gas too low"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsAlreadyKnown reports whether the node already has the submitted transaction.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
