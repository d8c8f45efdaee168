package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/poanetwork/layer-bridge/utils"
)

// Attestor produces oracle signatures over a digest.
type Attestor interface {
	Attest(ctx context.Context, digest common.Hash) ([][]byte, error)
}

// KeyAttestor signs with locally held oracle keys.
type KeyAttestor struct {
	keys []*ecdsa.PrivateKey
}

func NewKeyAttestor(hexKeys []string) (*KeyAttestor, error) {
	keys := make([]*ecdsa.PrivateKey, 0, len(hexKeys))
	for i, k := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(k, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid attestor key #%d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return &KeyAttestor{keys: keys}, nil
}

func NewKeyAttestorFromKeys(keys ...*ecdsa.PrivateKey) *KeyAttestor {
	return &KeyAttestor{keys: keys}
}

func (a *KeyAttestor) Attest(_ context.Context, digest common.Hash) ([][]byte, error) {
	sigs := make([][]byte, 0, len(a.keys))
	for _, key := range a.keys {
		sig, err := utils.SignText(digest.Bytes(), key)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
