package presenter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	mw "github.com/poanetwork/layer-bridge/presenter/http/middleware"
	"github.com/poanetwork/layer-bridge/presenter/http/render"
	"github.com/poanetwork/layer-bridge/relayer"
	"github.com/poanetwork/layer-bridge/swap"
	"github.com/poanetwork/layer-bridge/utils"
)

type MessageService interface {
	GetMessageStatus(ctx context.Context, messageID common.Hash) (*relayer.MessageStatus, error)
	GetMessageDetails(ctx context.Context, messageID common.Hash) (*relayer.MessageDetails, error)
	GetUserMessages(ctx context.Context, address string) ([]common.Hash, error)
}

type SwapService interface {
	AtomicSwap(ctx context.Context, req *swap.Request) (*entity.SwapRecord, error)
	GetSwapStatus(ctx context.Context, swapID common.Hash) (*swap.Status, error)
	Cancel(ctx context.Context, caller string, swapID common.Hash) (*entity.SwapRecord, error)
	Refund(ctx context.Context, caller string, swapID common.Hash) (*entity.SwapRecord, error)
}

type BreakerStates interface {
	States() []entity.CircuitBreakerState
}

type NodeRecords interface {
	Records() []entity.NodeHealthRecord
}

type Presenter struct {
	logger   logging.Logger
	messages MessageService
	swaps    SwapService
	breakers BreakerStates
	nodes    map[string]NodeRecords
	root     chi.Router
}

func NewPresenter(logger logging.Logger, messages MessageService, swaps SwapService, breakers BreakerStates, nodes map[string]NodeRecords) *Presenter {
	p := &Presenter{
		logger:   logger,
		messages: messages,
		swaps:    swaps,
		breakers: breakers,
		nodes:    nodes,
		root:     chi.NewMux(),
	}
	p.routes()
	return p
}

func (p *Presenter) routes() {
	p.root.Use(middleware.Throttle(20))
	p.root.Use(middleware.RequestID)
	p.root.Use(mw.NewLoggerMiddleware(p.logger))
	p.root.Use(mw.Recoverer)

	p.root.Route("/messages/{messageID}", func(r chi.Router) {
		r.Use(mw.GetMessageIDMiddleware)
		r.Get("/", p.wrapJSONHandler(p.GetMessageStatus))
		r.Get("/details", p.wrapJSONHandler(p.GetMessageDetails))
	})
	p.root.With(mw.GetAddressMiddleware).Get("/users/{address}/messages", p.wrapJSONHandler(p.GetUserMessages))
	p.root.Post("/swaps", p.CreateSwap)
	p.root.Route("/swaps/{swapID}", func(r chi.Router) {
		r.Use(mw.GetSwapIDMiddleware)
		r.Get("/", p.wrapJSONHandler(p.GetSwapStatus))
		r.Post("/cancel", p.swapAction(SwapActionCancel, p.swaps.Cancel))
		r.Post("/refund", p.swapAction(SwapActionRefund, p.swaps.Refund))
	})
	p.root.Get("/health", p.wrapJSONHandler(p.Health))
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

func (p *Presenter) wrapJSONHandler(handler func(ctx context.Context) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r.Context())
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, res)
	}
}

func (p *Presenter) GetMessageStatus(ctx context.Context) (interface{}, error) {
	return p.messages.GetMessageStatus(ctx, mw.MessageID(ctx))
}

func (p *Presenter) GetMessageDetails(ctx context.Context) (interface{}, error) {
	return p.messages.GetMessageDetails(ctx, mw.MessageID(ctx))
}

func (p *Presenter) GetUserMessages(ctx context.Context) (interface{}, error) {
	address := mw.Address(ctx)
	ids, err := p.messages.GetUserMessages(ctx, address)
	if err != nil {
		return nil, err
	}
	return &UserMessagesResult{Address: address, Messages: ids}, nil
}

func (p *Presenter) CreateSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	params, err := req.toRequest()
	if err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := p.swaps.AtomicSwap(r.Context(), params)
	if err != nil {
		if res != nil {
			logging.LoggerFromContext(r.Context()).WithField("swap_id", res.SwapID).WithError(err).Warn("swap did not complete")
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusCreated, newSwapResult(res))
}

func (p *Presenter) GetSwapStatus(ctx context.Context) (interface{}, error) {
	return p.swaps.GetSwapStatus(ctx, mw.SwapID(ctx))
}

const (
	SwapActionCancel = "cancel"
	SwapActionRefund = "refund"
)

// SwapActionDigest is the data a swap party signs to authorize action on swapID.
func SwapActionDigest(action string, swapID common.Hash) []byte {
	return crypto.Keccak256([]byte("bridge swap "+action), swapID.Bytes())
}

type swapActionFunc func(ctx context.Context, caller string, swapID common.Hash) (*entity.SwapRecord, error)

// swapAction runs a caller-authorized swap operation such as cancel or refund. The
// caller is the signer of the request, never a value taken from the body.
func (p *Presenter) swapAction(name string, action swapActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SwapActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			render.Error(w, r, err)
			return
		}
		if len(req.Signature) == 0 {
			render.Error(w, r, fmt.Errorf("%w: signature is required", entity.ErrValidation))
			return
		}
		swapID := mw.SwapID(r.Context())
		caller, err := utils.RestoreSignerAddress(SwapActionDigest(name, swapID), req.Signature)
		if err != nil {
			render.Error(w, r, fmt.Errorf("%w: %v", entity.ErrValidation, err))
			return
		}
		res, err := action(r.Context(), caller.Hex(), swapID)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		render.JSON(w, r, http.StatusOK, newSwapResult(res))
	}
}

func (p *Presenter) Health(context.Context) (interface{}, error) {
	res := &HealthResult{
		Breakers: p.breakers.States(),
		Nodes:    make(map[string][]entity.NodeHealthRecord, len(p.nodes)),
		Healthy:  true,
	}
	for _, state := range res.Breakers {
		if state.State == entity.BreakerOpen {
			res.Healthy = false
		}
	}
	for ledger, nodes := range p.nodes {
		records := nodes.Records()
		res.Nodes[ledger] = records
		if !anyHealthy(records) {
			res.Healthy = false
		}
	}
	return res, nil
}
