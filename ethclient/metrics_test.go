package ethclient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/core"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/ethclient"
)

type jsonError struct {
	code int
	msg  string
}

func (e jsonError) Error() string  { return e.msg }
func (e jsonError) ErrorCode() int { return e.code }

func TestResultStatus(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name   string
		Err    error
		Status string
	}{
		{"ok", nil, "ok"},
		{"timeout", fmt.Errorf("eth_call: %w", context.DeadlineExceeded), "timeout"},
		{"known tx", errors.New("already known"), "already_known"},
		{"nonce", core.ErrNonceTooLow, "rejected"},
		{"revert text", errors.New("execution reverted: swap exists"), "rejected"},
		{"rpc code", jsonError{code: -32005, msg: "limit exceeded for 0xabc"}, "error--32005"},
		{"transport", errors.New("connection refused"), "error"},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.Status, ethclient.ResultStatus(test.Err))
		})
	}
}
