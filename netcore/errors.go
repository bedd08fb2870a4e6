package netcore

import (
	"errors"
	"fmt"
)

var errNoInFlight = errors.New("netcore: no matching in-flight request")

// ProtocolViolationError marks a peer message that broke a state machine
// precondition: wrong type for the current in-flight request, an invalid
// proof, a contradictory tip, duplicate authentication, and so on. It is
// class 1 of the error handling design: the connection tears down and
// reconnects, and it is never surfaced to the application as an error
// (only logged).
type ProtocolViolationError struct {
	ConnectionID string
	Reason       string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("netcore: protocol violation on %s: %s", e.ConnectionID, e.Reason)
}

// TransportError wraps a session-reported disconnect reason. It is class 2:
// identical teardown and reconnect, but also surfaced to the application
// via Callbacks.OnConnectionFailed.
type TransportError struct {
	ConnectionID string
	Reason       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("netcore: transport failure on %s: %v", e.ConnectionID, e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Reason }
