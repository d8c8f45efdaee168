package zkgate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/logging"
)

var ErrMissingProof = errors.New("proof is required for message type")

// Verifier checks a proof against its public inputs. A nil error means the proof is valid.
type Verifier interface {
	Verify(proof, publicInputs []byte) error
}

type VerifierFunc func(proof, publicInputs []byte) error

func (f VerifierFunc) Verify(proof, publicInputs []byte) error {
	return f(proof, publicInputs)
}

type Admission struct {
	Required bool
	Verified bool
}

// Gate admits messages by running the verifier registered for their type.
// Types without a verifier are admitted unverified.
type Gate struct {
	mu        sync.RWMutex
	verifiers map[entity.MessageType]Verifier
	results   *lru.Cache
	logger    logging.Logger
}

func New(cacheSize int, logger logging.Logger) (*Gate, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("can't create proof cache: %w", err)
	}
	return &Gate{
		verifiers: make(map[entity.MessageType]Verifier),
		results:   cache,
		logger:    logger.WithField("service", "zkgate"),
	}, nil
}

func (g *Gate) Register(msgType entity.MessageType, v Verifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifiers[msgType] = v
}

func (g *Gate) Required(msgType entity.MessageType) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.verifiers[msgType]
	return ok
}

// Admit verifies the proof of msg if its type requires one and records the outcome
// in msg.ProofVerified. It returns entity.ErrProofRejected for a failed or absent required proof.
func (g *Gate) Admit(msg *entity.BridgeMessage) (Admission, error) {
	g.mu.RLock()
	v, ok := g.verifiers[msg.MessageType]
	g.mu.RUnlock()
	if !ok {
		msg.ProofVerified = false
		return Admission{}, nil
	}

	adm := Admission{Required: true}
	err := g.verify(v, msg)
	msg.ProofVerified = err == nil
	adm.Verified = msg.ProofVerified

	logger := g.logger.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"type":       msg.MessageType,
	})
	if err != nil {
		ProofResults.WithLabelValues(string(msg.MessageType), "rejected").Inc()
		logger.WithError(err).Warn("proof rejected")
		return adm, fmt.Errorf("%w: %v", entity.ErrProofRejected, err)
	}
	ProofResults.WithLabelValues(string(msg.MessageType), "verified").Inc()
	logger.Debug("proof verified")
	return adm, nil
}

func (g *Gate) verify(v Verifier, msg *entity.BridgeMessage) error {
	if len(msg.ZKProof) == 0 {
		return ErrMissingProof
	}
	key := crypto.Keccak256Hash([]byte(msg.MessageType), crypto.Keccak256(msg.ZKProof), crypto.Keccak256(msg.PublicInputs))
	if cached, ok := g.results.Get(key); ok {
		if cached.(bool) {
			return nil
		}
		return errors.New("proof verification failed (cached)")
	}
	err := v.Verify(msg.ZKProof, msg.PublicInputs)
	g.results.Add(key, err == nil)
	return err
}
