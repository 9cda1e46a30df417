package swap

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"superswap/pkg/types"
)

// DefaultDebounce is the quiet period after the last parameter change before a quote is requested
const DefaultDebounce = 500 * time.Millisecond

// Quoter prices a swap
type Quoter interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
}

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// SchedulerConfig holds the optional scheduler settings
type SchedulerConfig struct {
	Debounce time.Duration
	Logger   *zap.Logger
	Metrics  *Metrics
}

// Scheduler keeps the session's quote in step with its parameters.
// Every parameter change re-arms a debounce timer; only the parameters current
// when the timer fires are quoted, and only the latest response is kept.
type Scheduler struct {
	session  *Session
	quoter   Quoter
	debounce time.Duration
	logger   *zap.Logger
	metrics  *Metrics
	after    afterFunc
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending timer
	stopped bool
}

// NewScheduler attaches a scheduler to session
func NewScheduler(session *Session, quoter Quoter, cfg SchedulerConfig) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		session:  session,
		quoter:   quoter,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		after:    realAfterFunc,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}

	session.watchParams(func(types.SwapParameters) { s.arm(s.debounce) })
	session.onClose(s.Stop)
	return s
}

// Refresh requests a new quote for the current parameters without waiting for the debounce window
func (s *Scheduler) Refresh() {
	s.arm(0)
}

// Stop cancels the pending timer and any request in flight
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.cancel()
}

func (s *Scheduler) arm(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}

	var t timer
	t = s.after(d, func() {
		s.mu.Lock()
		if s.pending != t || s.stopped {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()

		s.fire()
	})
	s.pending = t
}

// fire issues one quote request for the parameters current at this moment
func (s *Scheduler) fire() {
	snap := s.session.Snapshot()
	params := snap.Params

	req, ok := s.buildRequest(params)
	if !ok {
		return
	}

	seq, ok := s.session.beginQuote(params)
	if !ok {
		return
	}

	s.metrics.quoteRequested()
	logger := s.logger.With(zap.Uint64("seq", seq))
	logger.Debug("requesting quote",
		zap.String("input_mint", req.InputMint),
		zap.String("output_mint", req.OutputMint),
		zap.String("amount", req.AmountBase),
		zap.Uint16("slippage_bps", req.SlippageBps))

	quote, err := s.quoter.Quote(s.ctx, req)
	if err != nil {
		s.metrics.quoteFailed()
		failure := newFailure(KindQuote, err)
		if s.session.rejectQuote(seq, failure) {
			logger.Warn("quote failed", zap.Error(failure))
		} else {
			s.metrics.quoteDropped()
			logger.Debug("discarded stale quote failure", zap.Error(err))
		}
		return
	}

	quote.Params = params
	quote.Seq = seq
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = s.now()
	}

	if !s.session.acceptQuote(seq, quote) {
		s.metrics.quoteDropped()
		logger.Debug("discarded stale quote")
		return
	}
	logger.Debug("quote accepted", zap.String("out_amount", quote.OutAmount))
}

// buildRequest checks params are quotable and scales the amount into base units
func (s *Scheduler) buildRequest(params types.SwapParameters) (types.QuoteRequest, bool) {
	if params.InputMint == "" || params.OutputMint == "" || params.Amount == "" {
		return types.QuoteRequest{}, false
	}

	input, ok := s.session.Universe().Get(params.InputMint)
	if !ok {
		s.logger.Debug("input token not discovered, skipping quote", zap.String("mint", params.InputMint))
		return types.QuoteRequest{}, false
	}

	base, err := QuotableBaseUnits(params.Amount, input.Decimals)
	if err != nil {
		s.logger.Debug("amount not quotable, skipping quote", zap.Error(err))
		return types.QuoteRequest{}, false
	}

	return types.QuoteRequest{
		InputMint:   params.InputMint,
		OutputMint:  params.OutputMint,
		AmountBase:  base,
		SlippageBps: params.SlippageBps,
	}, true
}
