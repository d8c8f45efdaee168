package utils

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// ValidateL1Address checks that addr is a bech32 string with the expected human readable part.
func ValidateL1Address(addr, hrp string) error {
	gotHRP, _, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid bech32 address %q: %w", addr, err)
	}
	if gotHRP != hrp {
		return fmt.Errorf("address %q has prefix %q, expected %q", addr, gotHRP, hrp)
	}
	return nil
}

func ValidateL2Address(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid hex address %q", addr)
	}
	return nil
}
