package entity

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientFee    = errors.New("insufficient fee")
	ErrReplayDetected     = errors.New("replay detected")
	ErrQuorumNotReached   = errors.New("oracle quorum not reached")
	ErrInvalidSignature   = errors.New("invalid oracle signature")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrStaleStatus        = errors.New("status changed concurrently")
	ErrMessageNotFound    = errors.New("message not found")
	ErrSwapNotFound       = errors.New("swap not found")
	ErrTimelockNotExpired = errors.New("timelock not expired")
	ErrMessageNotExpired  = errors.New("message timeout not reached")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrRetryLimitReached  = errors.New("retry limit reached")
	ErrChainInactive      = errors.New("chain is not active")
	ErrProofRejected      = errors.New("zk proof rejected")
	ErrExecutionFailed    = errors.New("message execution failed")
	ErrCursorNotFound     = errors.New("cursor not found")
)
