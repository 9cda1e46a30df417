package swap

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"superswap/pkg/types"
)

// Snapshot is a consistent copy of the session state
type Snapshot struct {
	ID        string
	Params    types.SwapParameters
	Quote     *types.Quote
	Status    Status
	Failure   *Failure
	Signature string
	Tokens    int
}

// Listener receives a snapshot after every state change
type Listener func(Snapshot)

// Session is the single owner of the swap parameters, token universe,
// latest quote and execution status. All mutation goes through its commands.
type Session struct {
	id       string
	logger   *zap.Logger
	universe *Universe

	mu        sync.Mutex
	params    types.SwapParameters
	quote     *types.Quote
	status    Status
	failure   *Failure
	signature string
	seq       uint64 // last issued quote sequence number
	latestSeq uint64 // sequence number a quote response must carry to be accepted; 0 accepts none
	closed    bool

	listeners     map[int]Listener
	nextListener  int
	paramWatchers []func(types.SwapParameters)
	closers       []func()
}

// NewSession creates a session for a newly connected wallet
func NewSession(slippageBps uint16, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	return &Session{
		id:        id,
		logger:    logger.With(zap.String("session", id)),
		universe:  NewUniverse(),
		params:    types.SwapParameters{SlippageBps: slippageBps},
		status:    StatusIdle,
		listeners: make(map[int]Listener),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Universe returns the session's token universe
func (s *Session) Universe() *Universe {
	return s.universe
}

// Subscribe registers l for state changes and returns a function that removes it
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// watchParams registers fn to be called with the new parameters after every accepted change
func (s *Session) watchParams(fn func(types.SwapParameters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramWatchers = append(s.paramWatchers, fn)
}

// onClose registers fn to run when the session is closed
func (s *Session) onClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	var quote *types.Quote
	if s.quote != nil {
		q := *s.quote
		quote = &q
	}
	return Snapshot{
		ID:        s.id,
		Params:    s.params,
		Quote:     quote,
		Status:    s.status,
		Failure:   s.failure,
		Signature: s.signature,
		Tokens:    s.universe.Count(),
	}
}

// SetInputMint changes the input token
func (s *Session) SetInputMint(mint string) error {
	return s.update(func(p *types.SwapParameters) { p.InputMint = mint })
}

// SetOutputMint changes the output token
func (s *Session) SetOutputMint(mint string) error {
	return s.update(func(p *types.SwapParameters) { p.OutputMint = mint })
}

// SetAmount changes the input amount, in input token human units
func (s *Session) SetAmount(amount string) error {
	return s.update(func(p *types.SwapParameters) { p.Amount = amount })
}

// SetSlippageBps changes the slippage tolerance
func (s *Session) SetSlippageBps(bps uint16) error {
	return s.update(func(p *types.SwapParameters) { p.SlippageBps = bps })
}

// SetParameters replaces all parameters at once
func (s *Session) SetParameters(params types.SwapParameters) error {
	return s.update(func(p *types.SwapParameters) { *p = params })
}

// update applies fn to a copy of the parameters, validates and installs the result.
// A change clears the quote, invalidates quote requests in flight and resets status to idle.
func (s *Session) update(fn func(*types.SwapParameters)) error {
	s.mu.Lock()
	if err := s.checkMutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	next := s.params
	fn(&next)
	if err := validateParameters(next); err != nil {
		s.mu.Unlock()
		return err
	}
	if next == s.params {
		s.mu.Unlock()
		return nil
	}

	s.params = next
	s.resetLocked()
	snap, listeners, watchers := s.snapshotLocked(), s.listenersLocked(), s.paramWatchers
	s.mu.Unlock()

	s.logger.Debug("parameters changed",
		zap.String("input_mint", next.InputMint),
		zap.String("output_mint", next.OutputMint),
		zap.String("amount", next.Amount),
		zap.Uint16("slippage_bps", next.SlippageBps))

	notify(snap, listeners)
	for _, w := range watchers {
		w(next)
	}
	return nil
}

// SwitchTokens exchanges input and output. With a quote present, the new amount
// is the quote's output converted to human units; otherwise the amount is kept.
func (s *Session) SwitchTokens() error {
	s.mu.Lock()
	if err := s.checkMutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	next := s.params
	next.InputMint, next.OutputMint = s.params.OutputMint, s.params.InputMint
	if s.quote != nil {
		if amount, ok := s.quotedOutputLocked(); ok {
			next.Amount = amount
		}
	}

	s.params = next
	s.resetLocked()
	snap, listeners, watchers := s.snapshotLocked(), s.listenersLocked(), s.paramWatchers
	s.mu.Unlock()

	notify(snap, listeners)
	for _, w := range watchers {
		w(next)
	}
	return nil
}

func (s *Session) quotedOutputLocked() (string, bool) {
	out, ok := s.universe.Get(s.quote.Params.OutputMint)
	if !ok {
		s.logger.Warn("output token not in universe, keeping amount",
			zap.String("mint", s.quote.Params.OutputMint))
		return "", false
	}
	v, ok := new(big.Int).SetString(s.quote.OutAmount, 10)
	if !ok {
		s.logger.Warn("unparseable quote output amount", zap.String("out_amount", s.quote.OutAmount))
		return "", false
	}
	return decimal.NewFromBigInt(v, -int32(out.Decimals)).String(), true
}

// ReplaceTokens installs a discovery result as the token universe
func (s *Session) ReplaceTokens(tokens []types.TokenDescriptor) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.universe.Replace(tokens)
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return nil
}

// ProposeDefaultPair sets the token pair only when neither mint is chosen yet.
// It reports whether the pair was applied.
func (s *Session) ProposeDefaultPair(inputMint, outputMint string) bool {
	if inputMint == "" || outputMint == "" || inputMint == outputMint {
		return false
	}

	s.mu.Lock()
	unset := s.params.InputMint == "" && s.params.OutputMint == ""
	s.mu.Unlock()
	if !unset {
		return false
	}

	applied := false
	err := s.update(func(p *types.SwapParameters) {
		if p.InputMint == "" && p.OutputMint == "" {
			p.InputMint, p.OutputMint = inputMint, outputMint
			applied = true
		}
	})
	return err == nil && applied
}

// Close tears the session down on wallet disconnect
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, c := range closers {
		c()
	}

	s.mu.Lock()
	s.params = types.SwapParameters{SlippageBps: s.params.SlippageBps}
	s.quote = nil
	s.failure = nil
	s.signature = ""
	s.latestSeq = 0
	s.status = StatusIdle
	s.universe.Replace(nil)
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
}

// beginQuote moves to quoting for params and returns the request's sequence number.
// It refuses when params are no longer current or the status does not allow quoting.
func (s *Session) beginQuote(params types.SwapParameters) (uint64, bool) {
	s.mu.Lock()
	if s.closed || params != s.params || !s.status.CanTransition(StatusQuoting) {
		s.mu.Unlock()
		return 0, false
	}

	s.seq++
	s.latestSeq = s.seq
	s.status = StatusQuoting
	s.quote = nil
	s.failure = nil
	s.signature = ""
	seq := s.seq
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return seq, true
}

// acceptQuote installs q if it answers the latest request for the current parameters
func (s *Session) acceptQuote(seq uint64, q *types.Quote) bool {
	s.mu.Lock()
	if s.closed || seq != s.latestSeq || s.status != StatusQuoting || !q.BoundTo(s.params) {
		s.mu.Unlock()
		return false
	}

	s.quote = q
	s.status = StatusQuoted
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return true
}

// rejectQuote reverts to idle if seq is the latest request, recording f as
// the reason no quote is available
func (s *Session) rejectQuote(seq uint64, f *Failure) bool {
	s.mu.Lock()
	if s.closed || seq != s.latestSeq || s.status != StatusQuoting {
		s.mu.Unlock()
		return false
	}

	s.quote = nil
	s.failure = f
	s.latestSeq = 0
	s.status = StatusIdle
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return true
}

// beginExecution moves to submitting and returns the quote to execute.
// It requires a quote bound to the current parameters.
func (s *Session) beginExecution() (*types.Quote, bool) {
	s.mu.Lock()
	if s.closed || s.quote == nil || !s.quote.BoundTo(s.params) || !s.status.CanTransition(StatusSubmitting) {
		s.mu.Unlock()
		return nil, false
	}

	s.status = StatusSubmitting
	s.failure = nil
	s.signature = ""
	s.latestSeq = 0
	q := *s.quote
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return &q, true
}

func (s *Session) markConfirming(signature string) error {
	return s.transition(StatusConfirming, func() {
		s.signature = signature
	})
}

func (s *Session) succeed() error {
	return s.transition(StatusSucceeded, func() {
		s.quote = nil
	})
}

// fail records f. The quote survives only when keepQuote is set.
func (s *Session) fail(f *Failure, keepQuote bool) error {
	return s.transition(StatusFailed, func() {
		s.failure = f
		if !keepQuote {
			s.quote = nil
		}
	})
}

func (s *Session) transition(next Status, apply func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.status.CanTransition(next) {
		current := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	s.status = next
	apply()
	snap, listeners := s.snapshotLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(snap, listeners)
	return nil
}

func (s *Session) checkMutableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.status.InFlight() {
		return ErrSwapInFlight
	}
	return nil
}

// resetLocked drops the quote and any outcome of a previous execution
func (s *Session) resetLocked() {
	s.quote = nil
	s.failure = nil
	s.signature = ""
	s.latestSeq = 0
	s.status = StatusIdle
}

func (s *Session) listenersLocked() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func notify(snap Snapshot, listeners []Listener) {
	for _, l := range listeners {
		l(snap)
	}
}

func validateParameters(p types.SwapParameters) error {
	if p.InputMint != "" && p.InputMint == p.OutputMint {
		return ErrSameToken
	}
	if _, err := ParseAmount(p.Amount); err != nil {
		return err
	}
	return nil
}
