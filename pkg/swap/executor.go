package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"superswap/pkg/types"
)

// DefaultMaxRetries is the broadcast retry hint passed to the network
const DefaultMaxRetries uint = 2

// TxBuilder returns a base64 unsigned transaction executing q for owner
type TxBuilder interface {
	BuildSwapTransaction(ctx context.Context, owner solana.PublicKey, q *types.Quote) (string, error)
}

// Signer signs transactions for the connected wallet.
// SignTransaction returns types.ErrUserDeclined when the user refuses.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// Network broadcasts signed transactions and waits for settlement
type Network interface {
	LatestBlockhash(ctx context.Context) (types.ValidityWindow, error)
	Broadcast(ctx context.Context, rawTx []byte, maxRetries uint) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature, window types.ValidityWindow) error
}

// ExecutorConfig holds the optional executor settings
type ExecutorConfig struct {
	MaxRetries uint
	Logger     *zap.Logger
	Metrics    *Metrics
}

// Executor turns the session's quote into a settled on-chain swap
type Executor struct {
	session    *Session
	builder    TxBuilder
	network    Network
	maxRetries uint
	logger     *zap.Logger
	metrics    *Metrics
}

// NewExecutor creates a new executor for session
func NewExecutor(session *Session, builder TxBuilder, network Network, cfg ExecutorConfig) *Executor {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Executor{
		session:    session,
		builder:    builder,
		network:    network,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Execute runs build, sign, broadcast and confirm for the current quote.
// It returns false without touching the session when there is no usable quote
// or no usable signer. Every failure ends up in the session as status and reason.
func (e *Executor) Execute(ctx context.Context, signer Signer) bool {
	owner, ok := signerKey(signer)
	if !ok {
		e.logger.Warn("swap not executed, signer has no public key")
		return false
	}

	quote, ok := e.session.beginExecution()
	if !ok {
		return false
	}

	logger := e.logger.With(
		zap.String("session", e.session.ID()),
		zap.String("owner", owner.String()),
		zap.Uint64("quote_seq", quote.Seq))
	logger.Info("executing swap",
		zap.String("input_mint", quote.Params.InputMint),
		zap.String("output_mint", quote.Params.OutputMint),
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount))

	payload, err := e.builder.BuildSwapTransaction(ctx, owner, quote)
	if err != nil {
		e.abort(logger, newFailure(KindBuild, fmt.Errorf("failed to build swap transaction: %w", err)), false)
		return true
	}

	tx, err := solana.TransactionFromBase64(payload)
	if err != nil {
		e.abort(logger, newFailure(KindBuild, fmt.Errorf("failed to decode swap transaction: %w", err)), false)
		return true
	}

	signed, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, types.ErrUserDeclined) {
			e.abort(logger, newFailure(KindSignRejected, err), true)
		} else {
			e.abort(logger, newFailure(KindBuild, fmt.Errorf("failed to sign transaction: %w", err)), false)
		}
		return true
	}

	window, err := e.network.LatestBlockhash(ctx)
	if err != nil {
		e.abort(logger, newFailure(KindBuild, fmt.Errorf("failed to get latest blockhash: %w", err)), false)
		return true
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		e.abort(logger, newFailure(KindBuild, fmt.Errorf("failed to serialize transaction: %w", err)), false)
		return true
	}

	sig, err := e.network.Broadcast(ctx, raw, e.maxRetries)
	if err != nil {
		e.abort(logger, newFailure(KindBroadcast, fmt.Errorf("failed to send transaction: %w", err)), false)
		return true
	}

	logger = logger.With(zap.String("signature", sig.String()))
	if err := e.session.markConfirming(sig.String()); err != nil {
		logger.Warn("session left confirming state", zap.Error(err))
		return true
	}
	logger.Info("transaction sent, waiting for confirmation",
		zap.Uint64("last_valid_block_height", window.LastValidBlockHeight))

	// Once broadcast, the swap runs to a terminal state regardless of the caller.
	if err := e.network.Confirm(context.WithoutCancel(ctx), sig, window); err != nil {
		kind := KindBroadcast
		if errors.Is(err, types.ErrBlockHeightExceeded) {
			kind = KindExpired
		}
		e.abort(logger, newFailure(kind, err), false)
		return true
	}

	if err := e.session.succeed(); err != nil {
		logger.Warn("failed to record success", zap.Error(err))
		return true
	}
	e.metrics.swapFinished("succeeded")
	logger.Info("swap confirmed")
	return true
}

func (e *Executor) abort(logger *zap.Logger, f *Failure, keepQuote bool) {
	e.metrics.swapFinished(string(f.Kind))
	logger.Warn("swap failed", zap.String("kind", string(f.Kind)), zap.String("reason", f.Reason), zap.Error(f.Err))
	if err := e.session.fail(f, keepQuote); err != nil {
		logger.Warn("failed to record failure", zap.Error(err))
	}
}

// signerKey returns the signer's public key. A nil signer, including a typed
// nil pointer whose PublicKey panics, has no key.
func signerKey(signer Signer) (key solana.PublicKey, ok bool) {
	if signer == nil {
		return solana.PublicKey{}, false
	}
	defer func() {
		if recover() != nil {
			key, ok = solana.PublicKey{}, false
		}
	}()
	key = signer.PublicKey()
	return key, !key.IsZero()
}
