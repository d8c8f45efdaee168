package groth16

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// Verifier checks BN254 Groth16 proofs. Proofs and public witnesses use gnark's binary encoding.
type Verifier struct {
	vk groth16.VerifyingKey
}

func NewVerifier(r io.Reader) (*Verifier, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("can't read verifying key: %w", err)
	}
	return &Verifier{vk: vk}, nil
}

func LoadVerifier(path string) (*Verifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open verifying key: %w", err)
	}
	defer f.Close()
	return NewVerifier(f)
}

func (v *Verifier) Verify(proof, publicInputs []byte) error {
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("can't decode proof: %w", err)
	}
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return err
	}
	if err = w.UnmarshalBinary(publicInputs); err != nil {
		return fmt.Errorf("can't decode public inputs: %w", err)
	}
	return groth16.Verify(p, v.vk, w)
}
