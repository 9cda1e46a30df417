package swap

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zeebo/assert"
	"go.uber.org/zap/zaptest"

	"superswap/pkg/types"
)

type executorFixture struct {
	session  *Session
	builder  *fakeBuilder
	signer   *fakeSigner
	network  *fakeNetwork
	executor *Executor
	metrics  *Metrics
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	assert.NoError(t, err)

	signer := newFakeSigner(t)
	f := &executorFixture{
		session: quotedSession(t),
		builder: &fakeBuilder{payer: signer.PublicKey()},
		signer:  signer,
		network: &fakeNetwork{
			window: types.ValidityWindow{Blockhash: solana.Hash{1}, LastValidBlockHeight: 1_000},
			sig:    solana.Signature{7, 7, 7},
		},
		metrics: metrics,
	}
	f.executor = NewExecutor(f.session, f.builder, f.network, ExecutorConfig{
		Logger:  zaptest.NewLogger(t),
		Metrics: metrics,
	})
	return f
}

func TestExecutorSuccess(t *testing.T) {
	f := newExecutorFixture(t)

	var statuses []Status
	f.session.Subscribe(func(s Snapshot) { statuses = append(statuses, s.Status) })

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	snap := f.session.Snapshot()
	assert.Equal(t, snap.Status, StatusSucceeded)
	assert.Equal(t, snap.Signature, f.network.sig.String())
	assert.Nil(t, snap.Failure)
	assert.Nil(t, snap.Quote)
	assert.DeepEqual(t, statuses, []Status{StatusSubmitting, StatusConfirming, StatusSucceeded})

	assert.That(t, f.builder.owner.Equals(f.signer.PublicKey()))
	assert.Equal(t, f.network.maxRetries, DefaultMaxRetries)
	assert.Equal(t, f.network.confirms, 1)

	tx, err := solana.TransactionFromBytes(f.network.raw)
	assert.NoError(t, err)
	assert.Equal(t, len(tx.Signatures), 1)
	assert.NoError(t, tx.VerifySignatures())
	assert.Equal(t, testutil.ToFloat64(f.metrics.swaps.WithLabelValues("succeeded")), 1.0)
}

func TestExecutorUserDeclinedKeepsQuote(t *testing.T) {
	f := newExecutorFixture(t)
	f.signer.declined = true
	quote := f.session.Snapshot().Quote

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	snap := f.session.Snapshot()
	assert.Equal(t, snap.Status, StatusFailed)
	assert.Equal(t, snap.Failure.Kind, KindSignRejected)
	assert.Equal(t, snap.Failure.Reason, "user declined")
	assert.NotNil(t, snap.Quote)
	assert.Equal(t, snap.Quote.Seq, quote.Seq)
	assert.Equal(t, f.network.broadcasts, 0)

	// retry with the retained quote, no re-quote needed
	f.signer.declined = false
	assert.True(t, f.executor.Execute(context.Background(), f.signer))
	assert.Equal(t, f.session.Snapshot().Status, StatusSucceeded)
	assert.Equal(t, f.builder.calls, 2)
}

func TestExecutorConfirmationExpired(t *testing.T) {
	f := newExecutorFixture(t)
	f.network.confirmErr = fmt.Errorf("signature not settled by height %d: %w", 1_000, types.ErrBlockHeightExceeded)

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	snap := f.session.Snapshot()
	assert.Equal(t, snap.Status, StatusFailed)
	assert.Equal(t, snap.Failure.Kind, KindExpired)
	assert.Equal(t, snap.Failure.Reason, "expired")
	assert.That(t, errors.Is(snap.Failure, types.ErrBlockHeightExceeded))
	assert.Equal(t, snap.Signature, f.network.sig.String())
	assert.Nil(t, snap.Quote)
}

func TestExecutorBroadcastFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.network.broadcastErr = errors.New("blockhash not found")

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	snap := f.session.Snapshot()
	assert.Equal(t, snap.Status, StatusFailed)
	assert.Equal(t, snap.Failure.Kind, KindBroadcast)
	assert.That(t, errors.Is(snap.Failure, f.network.broadcastErr))
	assert.Equal(t, snap.Signature, "")
	assert.Equal(t, f.network.confirms, 0)
}

func TestExecutorOnChainFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.network.confirmErr = fmt.Errorf("%w: custom program error 0x1771", types.ErrTransactionFailed)

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	snap := f.session.Snapshot()
	assert.Equal(t, snap.Failure.Kind, KindBroadcast)
	assert.Equal(t, snap.Signature, f.network.sig.String())
}

func TestExecutorBuildFailures(t *testing.T) {
	cases := map[string]func(f *executorFixture){
		"build":     func(f *executorFixture) { f.builder.err = errors.New("503") },
		"sign":      func(f *executorFixture) { f.signer.err = errors.New("ledger unplugged") },
		"blockhash": func(f *executorFixture) { f.network.blockhashErr = errors.New("rpc down") },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newExecutorFixture(t)
			setup(f)

			assert.True(t, f.executor.Execute(context.Background(), f.signer))

			snap := f.session.Snapshot()
			assert.Equal(t, snap.Status, StatusFailed)
			assert.Equal(t, snap.Failure.Kind, KindBuild)
			assert.Nil(t, snap.Quote)
			assert.Equal(t, f.network.broadcasts, 0)
		})
	}
}

func TestExecutorPreconditions(t *testing.T) {
	f := newExecutorFixture(t)
	assert.False(t, f.executor.Execute(context.Background(), nil))
	assert.Equal(t, f.session.Snapshot().Status, StatusQuoted)

	var missing *fakeSigner
	assert.False(t, f.executor.Execute(context.Background(), missing))
	assert.False(t, f.executor.Execute(context.Background(), &fakeSigner{}))
	assert.Equal(t, f.session.Snapshot().Status, StatusQuoted)
	assert.Equal(t, f.builder.calls, 0)

	session := newTestSession(t)
	assert.NoError(t, session.SetParameters(types.SwapParameters{
		InputMint: solMint, OutputMint: tokenXMint, Amount: "1", SlippageBps: 50,
	}))
	executor := NewExecutor(session, f.builder, f.network, ExecutorConfig{Logger: zaptest.NewLogger(t)})
	assert.False(t, executor.Execute(context.Background(), f.signer))
	assert.Equal(t, session.Snapshot().Status, StatusIdle)
	assert.Equal(t, f.builder.calls, 0)

	// a parameter change after quoting invalidates the quote
	assert.NoError(t, f.session.SetAmount("2"))
	assert.False(t, f.executor.Execute(context.Background(), f.signer))
	assert.Equal(t, f.builder.calls, 0)
}

func TestExecutorLocksParametersWhileInFlight(t *testing.T) {
	f := newExecutorFixture(t)
	before := f.session.Snapshot().Params

	var broadcastErr, confirmErr error
	f.network.onBroadcast = func() { broadcastErr = f.session.SetAmount("9") }
	f.network.onConfirm = func(context.Context) { confirmErr = f.session.SwitchTokens() }

	assert.True(t, f.executor.Execute(context.Background(), f.signer))

	assert.That(t, errors.Is(broadcastErr, ErrSwapInFlight))
	assert.That(t, errors.Is(confirmErr, ErrSwapInFlight))
	assert.Equal(t, f.session.Snapshot().Params, before)
}

func TestExecutorConfirmationOutlivesCaller(t *testing.T) {
	f := newExecutorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var confirmCtxErr error
	f.network.onBroadcast = cancel
	f.network.onConfirm = func(ctx context.Context) { confirmCtxErr = ctx.Err() }

	assert.True(t, f.executor.Execute(ctx, f.signer))
	assert.NoError(t, confirmCtxErr)
	assert.Equal(t, f.session.Snapshot().Status, StatusSucceeded)
}
