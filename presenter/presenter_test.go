package presenter_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/breaker"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/presenter"
	"github.com/poanetwork/layer-bridge/relayer"
	"github.com/poanetwork/layer-bridge/resilience"
	"github.com/poanetwork/layer-bridge/swap"
	"github.com/poanetwork/layer-bridge/utils"
)

var (
	knownID     = common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101")
	senderKey   = mustKey("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	strangerKey = mustKey("8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a")
	sender      = crypto.PubkeyToAddress(senderKey.PublicKey).Hex()
)

func mustKey(hex string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		panic(err)
	}
	return key
}

func signAction(t *testing.T, key *ecdsa.PrivateKey, action string, swapID common.Hash) string {
	t.Helper()
	sig, err := utils.SignText(presenter.SwapActionDigest(action, swapID), key)
	require.NoError(t, err)
	return `{"signature":"` + hexutil.Encode(sig) + `"}`
}

type fakeMessages struct{}

func (fakeMessages) GetMessageStatus(_ context.Context, id common.Hash) (*relayer.MessageStatus, error) {
	if id != knownID {
		return nil, fmt.Errorf("message %s: %w", id, entity.ErrMessageNotFound)
	}
	return &relayer.MessageStatus{MessageID: id, Status: entity.StatusPending, Source: relayer.SourceRegistry}, nil
}

func (fakeMessages) GetMessageDetails(_ context.Context, id common.Hash) (*relayer.MessageDetails, error) {
	return &relayer.MessageDetails{MessageID: id, Sender: sender, MessageType: entity.MessageTypeRiskScoreUpdate}, nil
}

func (fakeMessages) GetUserMessages(_ context.Context, address string) ([]common.Hash, error) {
	if address == sender {
		return []common.Hash{knownID}, nil
	}
	return nil, nil
}

type fakeSwaps struct {
	err  error
	last *swap.Request
}

func (f *fakeSwaps) AtomicSwap(_ context.Context, req *swap.Request) (*entity.SwapRecord, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &entity.SwapRecord{
		SwapID:   knownID,
		Status:   entity.SwapPending,
		L1Status: entity.LegPending,
		L2Status: entity.LegConfirmed,
	}, nil
}

func (f *fakeSwaps) GetSwapStatus(_ context.Context, id common.Hash) (*swap.Status, error) {
	if id != knownID {
		return nil, entity.ErrSwapNotFound
	}
	return &swap.Status{SwapID: id, Status: entity.SwapCompleted}, nil
}

func (f *fakeSwaps) Cancel(_ context.Context, caller string, id common.Hash) (*entity.SwapRecord, error) {
	return f.action(caller, id, entity.SwapCancelled)
}

func (f *fakeSwaps) Refund(_ context.Context, caller string, id common.Hash) (*entity.SwapRecord, error) {
	return f.action(caller, id, entity.SwapExpired)
}

func (f *fakeSwaps) action(caller string, id common.Hash, status entity.SwapStatus) (*entity.SwapRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if caller != sender {
		return nil, entity.ErrUnauthorized
	}
	return &entity.SwapRecord{SwapID: id, Status: status}, nil
}

type fakeBreakers []entity.CircuitBreakerState

func (f fakeBreakers) States() []entity.CircuitBreakerState { return f }

type fakeNodes []entity.NodeHealthRecord

func (f fakeNodes) Records() []entity.NodeHealthRecord { return f }

func newPresenter(swaps *fakeSwaps, breakers fakeBreakers) http.Handler {
	nodes := map[string]presenter.NodeRecords{
		"l2": fakeNodes{{Endpoint: "http://node-1", Healthy: true}},
	}
	return presenter.NewPresenter(logging.Discard(), fakeMessages{}, swaps, breakers, nodes).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMessageRoutes(t *testing.T) {
	t.Parallel()
	h := newPresenter(&fakeSwaps{}, nil)

	for _, test := range []struct {
		Name   string
		Path   string
		Status int
	}{
		{"status", "/messages/" + knownID.Hex(), http.StatusOK},
		{"details", "/messages/" + knownID.Hex() + "/details", http.StatusOK},
		{"unknown message", "/messages/" + common.HexToHash("0x02").Hex(), http.StatusNotFound},
		{"malformed id", "/messages/0x1234", http.StatusBadRequest},
		{"user messages", "/users/" + sender + "/messages", http.StatusOK},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, h, http.MethodGet, test.Path, "")
			require.Equal(t, test.Status, rec.Code, rec.Body.String())
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetMessageStatusBody(t *testing.T) {
	t.Parallel()
	rec := do(t, newPresenter(&fakeSwaps{}, nil), http.MethodGet, "/messages/"+knownID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res relayer.MessageStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, knownID, res.MessageID)
	require.Equal(t, entity.StatusPending, res.Status)
}

func TestCreateSwap(t *testing.T) {
	t.Parallel()
	swaps := &fakeSwaps{}
	h := newPresenter(swaps, nil)

	body := `{"initiator":"` + sender + `","amountL1":"5000","recipientL1":"tb1qgpqyqszqgpqyqszqgpqyqszqgpqyqszmtlsu7",` +
		`"amountL2":"1000000","recipientL2":"0x00000000000000000000000000000000000000bB","timelock":1700003600}`
	rec := do(t, h, http.MethodPost, "/swaps", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "5000", swaps.last.AmountL1.String())
	require.Equal(t, time.Unix(1700003600, 0), swaps.last.Timelock)

	var res presenter.SwapResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, knownID, res.SwapID)
	require.Equal(t, entity.LegConfirmed, res.L2Status)

	rec = do(t, h, http.MethodGet, "/swaps/"+knownID.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSwapErrors(t *testing.T) {
	t.Parallel()
	valid := `{"initiator":"a","amountL1":"1","recipientL1":"b","amountL2":"1","recipientL2":"c"}`

	for _, test := range []struct {
		Name   string
		Body   string
		Err    error
		Status int
	}{
		{"bad json", `{"initiator":`, nil, http.StatusBadRequest},
		{"unknown field", `{"amount":"1"}`, nil, http.StatusBadRequest},
		{"bad amount", `{"initiator":"a","amountL1":"1.5","amountL2":"1"}`, nil, http.StatusBadRequest},
		{"validation", valid, entity.ErrValidation, http.StatusBadRequest},
		{"circuit open", valid, breaker.ErrCircuitOpen, http.StatusServiceUnavailable},
		{"chain inactive", valid, entity.ErrChainInactive, http.StatusServiceUnavailable},
		{"timeout", valid, resilience.ErrTimeout, http.StatusGatewayTimeout},
		{"internal", valid, fmt.Errorf("boom"), http.StatusInternalServerError},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			h := newPresenter(&fakeSwaps{err: test.Err}, nil)
			rec := do(t, h, http.MethodPost, "/swaps", test.Body)
			require.Equal(t, test.Status, rec.Code, rec.Body.String())
		})
	}
}

func TestSwapActions(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name   string
		Path   string
		Body   func(t *testing.T) string
		Err    error
		Status int
		Result entity.SwapStatus
	}{
		{"cancel", "/cancel", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionCancel, knownID)
		}, nil, http.StatusOK, entity.SwapCancelled},
		{"refund", "/refund", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionRefund, knownID)
		}, nil, http.StatusOK, entity.SwapExpired},
		{"missing signature", "/cancel", func(*testing.T) string {
			return `{}`
		}, nil, http.StatusBadRequest, ""},
		{"self declared caller", "/cancel", func(*testing.T) string {
			return `{"caller":"` + sender + `"}`
		}, nil, http.StatusBadRequest, ""},
		{"truncated signature", "/cancel", func(*testing.T) string {
			return `{"signature":"0x0102"}`
		}, nil, http.StatusBadRequest, ""},
		{"signed by stranger", "/refund", func(t *testing.T) string {
			return signAction(t, strangerKey, presenter.SwapActionRefund, knownID)
		}, nil, http.StatusForbidden, ""},
		{"signed for another action", "/refund", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionCancel, knownID)
		}, nil, http.StatusForbidden, ""},
		{"signed for another swap", "/cancel", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionCancel, common.HexToHash("0x02"))
		}, nil, http.StatusForbidden, ""},
		{"timelock active", "/refund", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionRefund, knownID)
		}, entity.ErrTimelockNotExpired, http.StatusConflict, ""},
		{"already final", "/cancel", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionCancel, knownID)
		}, entity.ErrInvalidTransition, http.StatusConflict, ""},
		{"unknown swap", "/cancel", func(t *testing.T) string {
			return signAction(t, senderKey, presenter.SwapActionCancel, knownID)
		}, entity.ErrSwapNotFound, http.StatusNotFound, ""},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			h := newPresenter(&fakeSwaps{err: test.Err}, nil)
			rec := do(t, h, http.MethodPost, "/swaps/"+knownID.Hex()+test.Path, test.Body(t))
			require.Equal(t, test.Status, rec.Code, rec.Body.String())
			if test.Status != http.StatusOK {
				return
			}
			var res presenter.SwapResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Equal(t, knownID, res.SwapID)
			require.Equal(t, test.Result, res.Status)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newPresenter(&fakeSwaps{}, fakeBreakers{{Route: entity.RouteSwap, State: entity.BreakerClosed}}), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res presenter.HealthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Healthy)
	require.Len(t, res.Nodes["l2"], 1)

	rec = do(t, newPresenter(&fakeSwaps{}, fakeBreakers{{Route: entity.RouteL1ToL2, State: entity.BreakerOpen}}), http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.Healthy)
}
