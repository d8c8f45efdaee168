package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"gopkg.in/yaml.v3"
)

// Ether is an amount written in config as a decimal ether value and held in wei.
type Ether struct {
	*big.Int
}

func ParseEther(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("can't parse ether amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !r.IsInt() {
		return nil, fmt.Errorf("ether amount %q has sub-wei precision", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("ether amount %q is negative", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

func MustParseEther(s string) *big.Int {
	v, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (e *Ether) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseEther(value.Value)
	if err != nil {
		return err
	}
	e.Int = v
	return nil
}

// Wei returns the amount, zero when unset.
func (e Ether) Wei() *big.Int {
	if e.Int == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(e.Int)
}
