package swap

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/zeebo/assert"
	"go.uber.org/zap/zaptest"

	"superswap/pkg/types"
)

const (
	solMint    = "So11111111111111111111111111111111111111112"
	tokenXMint = "BQpGv6LVWG1JRm1NdjerNSFdChMdAULJr3x9t2Swpump"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var testTokens = []types.TokenDescriptor{
	{Address: solMint, Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9, LogoURI: "https://img/sol.png", Balance: 2_500_000_000},
	{Address: tokenXMint, Symbol: "TOKX", Name: "Token X", Decimals: 6, LogoURI: "https://img/x.png", Balance: 10_000_000},
	{Address: usdcMint, Symbol: "USDC", Name: "USD Coin", Decimals: 6, LogoURI: "https://img/usdc.png", Balance: 0},
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	session := NewSession(50, zaptest.NewLogger(t))
	assert.NoError(t, session.ReplaceTokens(testTokens))
	return session
}

// quotedSession returns a session holding a quote for 1 SOL -> 50 TOKX
func quotedSession(t *testing.T) *Session {
	t.Helper()
	session := newTestSession(t)
	params := types.SwapParameters{InputMint: solMint, OutputMint: tokenXMint, Amount: "1", SlippageBps: 50}
	assert.NoError(t, session.SetParameters(params))

	seq, ok := session.beginQuote(params)
	assert.True(t, ok)
	assert.True(t, session.acceptQuote(seq, &types.Quote{
		Params:    params,
		Seq:       seq,
		InAmount:  "1000000000",
		OutAmount: "50000000",
		FetchedAt: time.Now(),
	}))
	assert.Equal(t, session.Snapshot().Status, StatusQuoted)
	return session
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs due timers in deadline order
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

type fakeQuoter struct {
	mu       sync.Mutex
	requests []types.QuoteRequest
	respond  func(n int, req types.QuoteRequest) (*types.Quote, error)
}

func (q *fakeQuoter) Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error) {
	q.mu.Lock()
	q.requests = append(q.requests, req)
	n := len(q.requests)
	respond := q.respond
	q.mu.Unlock()

	if respond != nil {
		return respond(n, req)
	}
	return &types.Quote{InAmount: req.AmountBase, OutAmount: "42000000"}, nil
}

func (q *fakeQuoter) Requests() []types.QuoteRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.QuoteRequest(nil), q.requests...)
}

type fakeBuilder struct {
	payer solana.PublicKey
	err   error
	calls int
	owner solana.PublicKey
}

func (b *fakeBuilder) BuildSwapTransaction(ctx context.Context, owner solana.PublicKey, q *types.Quote) (string, error) {
	b.calls++
	b.owner = owner
	if b.err != nil {
		return "", b.err
	}

	ix := system.NewTransferInstruction(1_000, b.payer, solana.SystemProgramID).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(b.payer))
	if err != nil {
		return "", err
	}
	return tx.ToBase64()
}

type fakeSigner struct {
	key      solana.PrivateKey
	declined bool
	err      error
	calls    int
}

func newFakeSigner(t *testing.T) *fakeSigner {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	assert.NoError(t, err)
	return &fakeSigner{key: key}
}

func (s *fakeSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *fakeSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	s.calls++
	if s.declined {
		return nil, fmt.Errorf("wallet: %w", types.ErrUserDeclined)
	}
	if s.err != nil {
		return nil, s.err
	}
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type fakeNetwork struct {
	window       types.ValidityWindow
	blockhashErr error
	broadcastErr error
	confirmErr   error
	sig          solana.Signature

	onBroadcast func()
	onConfirm   func(ctx context.Context)

	raw        []byte
	maxRetries uint
	broadcasts int
	confirms   int
}

func (n *fakeNetwork) LatestBlockhash(ctx context.Context) (types.ValidityWindow, error) {
	return n.window, n.blockhashErr
}

func (n *fakeNetwork) Broadcast(ctx context.Context, rawTx []byte, maxRetries uint) (solana.Signature, error) {
	n.broadcasts++
	n.raw = rawTx
	n.maxRetries = maxRetries
	if n.onBroadcast != nil {
		n.onBroadcast()
	}
	if n.broadcastErr != nil {
		return solana.Signature{}, n.broadcastErr
	}
	return n.sig, nil
}

func (n *fakeNetwork) Confirm(ctx context.Context, sig solana.Signature, window types.ValidityWindow) error {
	n.confirms++
	if n.onConfirm != nil {
		n.onConfirm(ctx)
	}
	return n.confirmErr
}
