package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"superswap/config"
	"superswap/pkg/types"
)

// DefaultPollInterval is how often signature status is checked while confirming
const DefaultPollInterval = 2 * time.Second

// rpcAPI is the subset of the Solana RPC client used here
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendRawTransactionWithOpts(ctx context.Context, rawTx []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// Solana broadcasts transactions and tracks them until they settle or expire
type Solana struct {
	config       config.SolanaConfig
	client       rpcAPI
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewSolana creates a new network client
func NewSolana(cfg config.SolanaConfig, logger *zap.Logger) (*Solana, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	return newSolana(cfg, rpc.New(cfg.RPCURL), logger), nil
}

func newSolana(cfg config.SolanaConfig, client rpcAPI, logger *zap.Logger) *Solana {
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Solana{
		config:       cfg,
		client:       client,
		pollInterval: poll,
		logger:       logger,
	}
}

// LatestBlockhash returns the blockhash and the last block height at which a
// transaction referencing it is still accepted
func (s *Solana) LatestBlockhash(ctx context.Context) (types.ValidityWindow, error) {
	recent, err := s.client.GetLatestBlockhash(ctx, s.getCommitment())
	if err != nil {
		return types.ValidityWindow{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return types.ValidityWindow{}, fmt.Errorf("empty blockhash response")
	}
	return types.ValidityWindow{
		Blockhash:            recent.Value.Blockhash,
		LastValidBlockHeight: recent.Value.LastValidBlockHeight,
	}, nil
}

// Broadcast sends a signed transaction. maxRetries is passed to the RPC node,
// which rebroadcasts on its own; nothing is retried here.
func (s *Solana) Broadcast(ctx context.Context, rawTx []byte, maxRetries uint) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.getCommitment(),
		MaxRetries:          &maxRetries,
	}

	sig, err := s.client.SendRawTransactionWithOpts(ctx, rawTx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// Confirm blocks until sig reaches the configured commitment. It returns
// types.ErrTransactionFailed if the transaction settled with an error and
// types.ErrBlockHeightExceeded once the chain passes the window's last valid height.
func (s *Solana) Confirm(ctx context.Context, sig solana.Signature, window types.ValidityWindow) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	logger := s.logger.With(zap.String("signature", sig.String()))

	for {
		done, err := s.checkConfirmation(ctx, sig, window, logger)
		if done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkConfirmation returns true when the transaction reached a terminal state
func (s *Solana) checkConfirmation(ctx context.Context, sig solana.Signature, window types.ValidityWindow, logger *zap.Logger) (bool, error) {
	if done, err := s.checkSettled(ctx, sig, logger); done {
		return true, err
	}

	height, err := s.client.GetBlockHeight(ctx, s.getCommitment())
	if err != nil {
		logger.Debug("block height check failed", zap.Error(err))
		return false, nil
	}
	if height <= window.LastValidBlockHeight {
		return false, nil
	}

	// the transaction may have landed between the status and height reads
	if done, err := s.checkSettled(ctx, sig, logger); done {
		return true, err
	}
	return true, fmt.Errorf("%w: block height %d passed %d", types.ErrBlockHeightExceeded, height, window.LastValidBlockHeight)
}

// checkSettled returns true once the transaction failed on chain or reached the configured commitment
func (s *Solana) checkSettled(ctx context.Context, sig solana.Signature, logger *zap.Logger) (bool, error) {
	status, err := s.signatureStatus(ctx, sig, false)
	if err != nil {
		// Transient RPC errors are ignored, the next tick checks again
		logger.Debug("signature status check failed", zap.Error(err))
		return false, nil
	}
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		return true, fmt.Errorf("%w: %v", types.ErrTransactionFailed, status.Err)
	}
	if s.reached(status.ConfirmationStatus) {
		logger.Debug("transaction settled",
			zap.Uint64("slot", status.Slot),
			zap.String("confirmation_status", string(status.ConfirmationStatus)))
		return true, nil
	}
	return false, nil
}

// SignatureStatus looks up a transaction, searching ledger history
func (s *Solana) SignatureStatus(ctx context.Context, signature string) (*types.SignatureStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	status, err := s.signatureStatus(ctx, sig, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	result := &types.SignatureStatus{Signature: signature}
	if status == nil {
		return result, nil
	}

	result.Found = true
	result.Slot = status.Slot
	result.ConfirmationStatus = string(status.ConfirmationStatus)
	if status.Err != nil {
		result.Err = fmt.Sprintf("%v", status.Err)
	}
	return result, nil
}

func (s *Solana) signatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error) {
	out, err := s.client.GetSignatureStatuses(ctx, searchHistory, sig)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// reached reports whether a confirmation status satisfies the configured commitment
func (s *Solana) reached(status rpc.ConfirmationStatusType) bool {
	switch s.getCommitment() {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// getCommitment returns the commitment level from config
func (s *Solana) getCommitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
