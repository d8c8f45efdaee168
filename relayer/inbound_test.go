package relayer_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/l1client"
	"github.com/poanetwork/layer-bridge/logging"
	"github.com/poanetwork/layer-bridge/oracle"
	"github.com/poanetwork/layer-bridge/pubsub"
	"github.com/poanetwork/layer-bridge/relayer"
	"github.com/poanetwork/layer-bridge/zkgate"
)

var goodProof = []byte("good proof")

func newInbound(t *testing.T, msgType entity.MessageType, payload []byte, seq uint64, signers ...*ecdsa.PrivateKey) *relayer.InboundMessage {
	t.Helper()
	in := &relayer.InboundMessage{
		Sender:        l1Sender,
		TargetAddress: l2Target,
		MessageType:   msgType,
		Payload:       payload,
		L1Timestamp:   1_700_000_000,
		Sequence:      seq,
		Source:        "test",
	}
	sign(t, in, signers...)
	return in
}

func sign(t *testing.T, in *relayer.InboundMessage, signers ...*ecdsa.PrivateKey) {
	t.Helper()
	sigs, err := oracle.NewKeyAttestorFromKeys(signers...).Attest(context.Background(), in.MessageID())
	require.NoError(t, err)
	in.Signatures = sigs
}

func registerProofVerifier(e *env) {
	e.gate.Register(entity.MessageTypeTokenTransfer, zkgate.VerifierFunc(func(proof, _ []byte) error {
		if bytes.Equal(proof, goodProof) {
			return nil
		}
		return errors.New("bad proof")
	}))
}

func transferPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := relayer.EncodePayload(relayer.TokenTransfer{Recipient: common.HexToAddress(l2Target), Amount: common.Big1})
	require.NoError(t, err)
	return payload
}

func TestProcessMessageFromL1(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	ctx := context.Background()

	var executed []relayer.Payload
	e.handlers.Register(entity.MessageTypeRiskScoreUpdate, relayer.HandlerFunc(func(_ context.Context, _ *entity.BridgeMessage, p relayer.Payload) error {
		executed = append(executed, p)
		return nil
	}))

	in := newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 75), 7, e.keys[:2]...)
	msg, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessed, msg.Status)
	require.Equal(t, in.MessageID(), msg.MessageID)
	require.EqualValues(t, 7, msg.Sequence)
	require.Equal(t, []relayer.Payload{relayer.RiskScoreUpdate{User: common.HexToAddress(l2Target), Score: 75}}, executed)

	_, err = e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrReplayDetected)
	require.Len(t, executed, 1)
}

func TestProcessMessageFromL1Quorum(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	ctx := context.Background()

	in := newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 75), 1, e.keys[0])
	_, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrQuorumNotReached)

	// The rejected attestation did not consume the commitment.
	sign(t, in, e.keys...)
	msg, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessed, msg.Status)
}

func TestProcessMessageFromL1FailsClosed(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	ctx := context.Background()

	// No handler is registered for identity updates.
	payload, err := relayer.EncodePayload(relayer.IdentityUpdate{User: common.HexToAddress(l2Target)})
	require.NoError(t, err)
	in := newInbound(t, entity.MessageTypeIdentityUpdate, payload, 1, e.keys...)
	msg, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrUnknownMessageType)
	require.Equal(t, entity.StatusFailed, msg.Status)

	in = newInbound(t, entity.MessageTypeRiskScoreUpdate, []byte{0x01}, 2, e.keys...)
	msg, err = e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrExecutionFailed)
	require.Equal(t, entity.StatusFailed, msg.Status)

	in = newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 101), 3, e.keys...)
	msg, err = e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrExecutionFailed)
	require.Equal(t, entity.StatusFailed, msg.Status)
}

func TestRetryWithNewProof(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	registerProofVerifier(e)
	ctx := context.Background()

	in := newInbound(t, entity.MessageTypeTokenTransfer, transferPayload(t), 1)
	in.ZKProof = []byte("bad proof")
	sign(t, in, e.keys...)

	msg, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrProofRejected)
	require.Equal(t, entity.StatusFailed, msg.Status)
	require.False(t, msg.ProofVerified)

	_, err = e.relayer.RetryWithNewProof(ctx, l1Target, msg.MessageID, goodProof, nil)
	require.ErrorIs(t, err, entity.ErrUnauthorized)

	msg, err = e.relayer.RetryWithNewProof(ctx, l1Sender, msg.MessageID, []byte("still bad"), nil)
	require.ErrorIs(t, err, entity.ErrProofRejected)
	require.Equal(t, entity.StatusFailed, msg.Status)
	require.EqualValues(t, 1, msg.RetryCount)

	msg, err = e.relayer.RetryWithNewProof(ctx, l1Sender, msg.MessageID, goodProof, nil)
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessed, msg.Status)
	require.True(t, msg.ProofVerified)
	require.EqualValues(t, 2, msg.RetryCount)

	_, err = e.relayer.RetryWithNewProof(ctx, l1Sender, msg.MessageID, goodProof, nil)
	require.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestRetryWithNewProofLimit(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	registerProofVerifier(e)
	ctx := context.Background()

	in := newInbound(t, entity.MessageTypeTokenTransfer, transferPayload(t), 1)
	in.ZKProof = []byte("bad proof")
	sign(t, in, e.keys...)
	msg, err := e.relayer.ProcessMessageFromL1(ctx, in)
	require.ErrorIs(t, err, entity.ErrProofRejected)

	for i := 0; i < 2; i++ {
		_, err = e.relayer.RetryWithNewProof(ctx, admin, msg.MessageID, []byte{byte(i)}, nil)
		require.ErrorIs(t, err, entity.ErrProofRejected)
	}
	_, err = e.relayer.RetryWithNewProof(ctx, admin, msg.MessageID, goodProof, nil)
	require.ErrorIs(t, err, entity.ErrRetryLimitReached)
}

func TestPoolProcessesQueue(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	pool := relayer.NewPool(e.relayer, 2, 4, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- pool.Run(ctx)
	}()

	var (
		mu      sync.Mutex
		results = make(map[uint64]bool)
	)
	for seq := uint64(1); seq <= 3; seq++ {
		seq := seq
		in := newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, uint8(seq)), seq, e.keys...)
		require.NoError(t, pool.Enqueue(ctx, &relayer.Job{
			Msg: in,
			Done: func(err error, final bool) {
				mu.Lock()
				defer mu.Unlock()
				results[seq] = err == nil && final
			},
		}))
	}
	// Unattested messages are dropped for good.
	require.NoError(t, pool.Enqueue(ctx, &relayer.Job{
		Msg: newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 9), 9),
		Done: func(err error, final bool) {
			mu.Lock()
			defer mu.Unlock()
			results[9] = errors.Is(err, entity.ErrQuorumNotReached) && final
		},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 4
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	for seq, ok := range results {
		require.True(t, ok, seq)
	}
}

func TestL1TagWatcher(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil)
	in := newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 50), 4, e.keys...)
	inbound := &relayer.Envelope{
		Direction:     entity.DirectionL1ToL2,
		Sender:        in.Sender,
		TargetAddress: in.TargetAddress,
		MessageType:   in.MessageType,
		Payload:       in.Payload,
		Timestamp:     in.L1Timestamp,
		Sequence:      in.Sequence,
	}
	for _, sig := range in.Signatures {
		inbound.Signatures = append(inbound.Signatures, sig)
	}
	data, err := inbound.Encode()
	require.NoError(t, err)
	own, err := relayer.NewEnvelope(&entity.BridgeMessage{Direction: entity.DirectionL2ToL1, Payload: []byte{1}}, nil).Encode()
	require.NoError(t, err)

	e.l1.blocks = []*l1client.TaggedBlock{
		{Index: 0, BlockID: "own", Data: own},
		{Index: 1, BlockID: "inbound", Data: data},
	}
	for _, id := range []string{"own", "inbound"} {
		e.l1.meta[id] = &l1client.BlockMetadata{BlockID: id, State: l1client.BlockFinalized, Confirmations: 5}
	}

	pool := relayer.NewPool(e.relayer, 1, 4, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()
	go e.relayer.StartL1TagWatcher(ctx, pool)

	require.Eventually(t, func() bool {
		status, err := e.relayer.GetMessageStatus(ctx, in.MessageID())
		return err == nil && status.Status == entity.StatusProcessed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSecondaryConsumer(t *testing.T) {
	t.Parallel()

	channel := pubsub.NewMemoryChannel()
	e := newEnv(t, channel)
	in := newInbound(t, entity.MessageTypeRiskScoreUpdate, riskPayload(t, 60), 5, e.keys...)
	envelope := &relayer.Envelope{
		Direction:     entity.DirectionL1ToL2,
		Sender:        in.Sender,
		TargetAddress: in.TargetAddress,
		MessageType:   in.MessageType,
		Payload:       in.Payload,
		Timestamp:     in.L1Timestamp,
		Sequence:      in.Sequence,
	}
	for _, sig := range in.Signatures {
		envelope.Signatures = append(envelope.Signatures, sig)
	}
	data, err := envelope.Encode()
	require.NoError(t, err)
	sealer, err := pubsub.NewSealer(sealKey)
	require.NoError(t, err)
	sealed, err := sealer.Seal(data, []byte(topic))
	require.NoError(t, err)

	pool := relayer.NewPool(e.relayer, 1, 4, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()
	go func() { _ = e.relayer.StartSecondaryConsumer(ctx, pool) }()

	require.Eventually(t, func() bool {
		// Tampered ciphertexts are dropped, the genuine one is processed.
		_ = channel.Publish(ctx, topic, append([]byte{0}, sealed[1:]...))
		_ = channel.Publish(ctx, topic, sealed)
		status, err := e.relayer.GetMessageStatus(ctx, in.MessageID())
		return err == nil && status.Status == entity.StatusProcessed
	}, 5*time.Second, 20*time.Millisecond)
}
