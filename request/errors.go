package request

import "fmt"

// ProtocolError marks a response that did not match its request: an
// unexpected message type, a proof that failed verification, or a
// malformed payload. The caller (netcore.Connection) treats this as a
// class-1 protocol violation: it tears down and reconnects to the peer.
type ProtocolError struct {
	Type   Type
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("request: protocol violation for %s: %s", e.Type, e.Reason)
}

func errUnexpectedMessage(t Type) error {
	return &ProtocolError{Type: t, Reason: "unexpected response message"}
}

// NewProtocolError builds a ProtocolError with a custom reason, for use by
// Validators that reject a response for a domain-specific reason (a proof
// that fails verification, a mismatched key or ID).
func NewProtocolError(t Type, reason string) error {
	return &ProtocolError{Type: t, Reason: reason}
}
