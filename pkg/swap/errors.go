package swap

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an orchestration step failed
type FailureKind string

const (
	KindDiscovery    FailureKind = "discovery_failure"
	KindQuote        FailureKind = "quote_failure"
	KindBuild        FailureKind = "transaction_build_failure"
	KindSignRejected FailureKind = "sign_rejected"
	KindBroadcast    FailureKind = "broadcast_failure"
	KindExpired      FailureKind = "confirmation_expired"
)

const (
	ReasonUserDeclined = "user declined"
	ReasonExpired      = "expired"
)

var (
	ErrSwapInFlight      = errors.New("swap in flight, parameters are locked")
	ErrSameToken         = errors.New("input and output token must differ")
	ErrInvalidAmount     = errors.New("amount must be a non-negative number")
	ErrAmountTooSmall    = errors.New("amount is below the token's smallest unit")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSessionClosed     = errors.New("session closed")
)

// Failure records a failed step with a user-facing reason and the underlying error
type Failure struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func newFailure(kind FailureKind, err error) *Failure {
	f := &Failure{Kind: kind, Err: err}
	switch kind {
	case KindSignRejected:
		f.Reason = ReasonUserDeclined
	case KindExpired:
		f.Reason = ReasonExpired
	default:
		if err != nil {
			f.Reason = err.Error()
		}
	}
	return f
}

func (f *Failure) Error() string {
	if f.Err == nil || f.Reason == f.Err.Error() {
		return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// DiscoveryFailure wraps an error raised while paging through wallet assets
func DiscoveryFailure(err error) *Failure {
	return newFailure(KindDiscovery, err)
}

// FailureKindOf extracts the failure kind from err, if any
func FailureKindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}
