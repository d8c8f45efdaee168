package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/presenter/http/render"
)

type ctxKey int

const (
	messageIDCtxKey ctxKey = iota
	swapIDCtxKey
	addressCtxKey
)

func hashParam(r *http.Request, name string) (common.Hash, error) {
	raw := chi.URLParam(r, name)
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s must be a 32 byte hex string", entity.ErrValidation, name)
	}
	return common.BytesToHash(b), nil
}

func GetMessageIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := hashParam(r, "messageID")
		if err != nil {
			render.Error(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), messageIDCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func MessageID(ctx context.Context) common.Hash {
	id, _ := ctx.Value(messageIDCtxKey).(common.Hash)
	return id
}

func GetSwapIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := hashParam(r, "swapID")
		if err != nil {
			render.Error(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), swapIDCtxKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SwapID(ctx context.Context) common.Hash {
	id, _ := ctx.Value(swapIDCtxKey).(common.Hash)
	return id
}

// GetAddressMiddleware accepts both L2 hex and L1 bech32 account addresses.
func GetAddressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := chi.URLParam(r, "address")
		if address == "" || len(address) > 128 {
			render.Error(w, r, fmt.Errorf("%w: invalid address", entity.ErrValidation))
			return
		}
		ctx := context.WithValue(r.Context(), addressCtxKey, address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Address(ctx context.Context) string {
	address, _ := ctx.Value(addressCtxKey).(string)
	return address
}
