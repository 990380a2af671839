package exchange

import "fmt"

// GatewayError carries a venue rejection back to the caller. Code is the
// venue's numeric error code when one was returned, 0 for transport-level
// failures.
type GatewayError struct {
	Op      string // gateway operation, e.g. "submit limit order"
	Code    int64
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: venue error %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// SequenceAbortError marks a bracket run that stopped before completion.
// Stage names the phase that failed.
type SequenceAbortError struct {
	Stage  string
	Reason error
}

func (e *SequenceAbortError) Error() string {
	return fmt.Sprintf("sequence aborted at %s: %v", e.Stage, e.Reason)
}

func (e *SequenceAbortError) Unwrap() error { return e.Reason }

// TransientPollError marks a single failed state read in a poll loop. The
// loop carries on to its next cycle; nothing aborts on this alone.
type TransientPollError struct {
	Op  string // what was being read, e.g. "order status"
	Err error
}

func (e *TransientPollError) Error() string {
	return fmt.Sprintf("%s poll failed: %v", e.Op, e.Err)
}

func (e *TransientPollError) Unwrap() error { return e.Err }
