package swap

// Status defines the current state of a swap session
type Status string

const (
	StatusIdle       Status = "idle"       // No quote for the current parameters
	StatusQuoting    Status = "quoting"    // Quote request in flight
	StatusQuoted     Status = "quoted"     // Quote available for the current parameters
	StatusSubmitting Status = "submitting" // Building, signing and broadcasting
	StatusConfirming Status = "confirming" // Broadcast, waiting for settlement
	StatusSucceeded  Status = "succeeded"  // Transaction settled
	StatusFailed     Status = "failed"     // Execution failed, see the failure reason
)

var transitions = map[Status][]Status{
	StatusIdle:       {StatusQuoting},
	StatusQuoting:    {StatusQuoted, StatusIdle},
	StatusQuoted:     {StatusSubmitting, StatusQuoting, StatusIdle},
	StatusSubmitting: {StatusConfirming, StatusFailed},
	StatusConfirming: {StatusSucceeded, StatusFailed},
	StatusSucceeded:  {StatusIdle, StatusQuoting},
	StatusFailed:     {StatusIdle, StatusQuoting, StatusSubmitting},
}

// CanTransition reports whether the state machine allows moving from s to next
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InFlight returns true while a swap is being submitted or confirmed
func (s Status) InFlight() bool {
	return s == StatusSubmitting || s == StatusConfirming
}

// Terminal returns true once an execution has finished
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}
