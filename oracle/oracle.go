package oracle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/registry"
	"github.com/poanetwork/layer-bridge/utils"
)

// Threshold is the number of distinct trusted signatures needed for quorum:
// percentage * n / 100 rounded to the nearest integer, halves up, and at least one.
// The share it represents may be slightly below percentage, 3 of 5 signers meet 67%
// and 2 of 4 meet 51%.
func Threshold(percentage uint, n int) int {
	t := (int(percentage)*n + 50) / 100
	if t < 1 {
		t = 1
	}
	return t
}

type Result struct {
	Signers []common.Address
	Invalid int
}

// Verifier checks attestations against a fixed set of trusted signers.
// Verification is deterministic and has no side effects besides logging.
type Verifier struct {
	signers   map[common.Address]struct{}
	threshold int
	logger    logging.Logger
}

func NewVerifier(cfg config.OracleConfig, logger logging.Logger) *Verifier {
	signers := make(map[common.Address]struct{}, len(cfg.Signers))
	for _, s := range cfg.Signers {
		signers[s] = struct{}{}
	}
	return &Verifier{
		signers:   signers,
		threshold: Threshold(cfg.QuorumPercentage, len(signers)),
		logger:    logger.WithField("service", "oracle"),
	}
}

func (v *Verifier) Threshold() int {
	return v.threshold
}

func (v *Verifier) IsSigner(addr common.Address) bool {
	_, ok := v.signers[addr]
	return ok
}

// Verify counts distinct trusted signers among sigs over digest. Bad or untrusted
// signatures are skipped; the call fails only if the valid count is below the threshold.
func (v *Verifier) Verify(digest common.Hash, sigs [][]byte) (*Result, error) {
	res := &Result{}
	seen := make(map[common.Address]bool, len(sigs))
	for _, sig := range sigs {
		addr, err := utils.RestoreSignerAddress(digest.Bytes(), sig)
		if err != nil || !v.IsSigner(addr) || seen[addr] {
			res.Invalid++
			continue
		}
		seen[addr] = true
		res.Signers = append(res.Signers, addr)
	}
	if len(res.Signers) < v.threshold {
		QuorumFailures.Inc()
		logging.Security(v.logger, "quorum_not_reached").WithFields(logrus.Fields{
			"digest":    digest,
			"valid":     len(res.Signers),
			"invalid":   res.Invalid,
			"threshold": v.threshold,
		}).Warn("attestation rejected")
		return res, fmt.Errorf("%d of %d required signatures: %w", len(res.Signers), v.threshold, entity.ErrQuorumNotReached)
	}
	if res.Invalid > 0 {
		v.logger.WithFields(logrus.Fields{
			"digest":  digest,
			"invalid": res.Invalid,
		}).Warn("ignored invalid signatures in attestation")
	}
	return res, nil
}

func (v *Verifier) VerifyMessage(messageID common.Hash, sigs [][]byte) (*Result, error) {
	return v.Verify(messageID, sigs)
}

func (v *Verifier) VerifyConfirmation(messageID common.Hash, success bool, sigs [][]byte) (*Result, error) {
	return v.Verify(registry.ConfirmationDigest(messageID, success), sigs)
}
