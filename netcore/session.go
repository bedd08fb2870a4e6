package netcore

// Session is the encrypted transport a Connection is built against. It is
// deliberately minimal: framing, encryption, and the actual socket or
// SOCKS-proxy hop are out of scope for this module, matching the way the
// teacher's protocol package is built against muxer channels rather than a
// raw net.Conn.
type Session interface {
	// Send writes one length-framed message. It must not be called
	// concurrently with another Send on the same Session.
	Send(msg []byte) error
	// Recv blocks until the next framed message arrives, or returns an
	// error (including io.EOF on orderly close) if the session ends.
	Recv() ([]byte, error)
	// Close tears down the underlying transport. Idempotent.
	Close() error
}

// Codec turns typed wire messages into the byte frames a Session moves and
// back. Kept separate from Session so a Connection can be tested against a
// fake Session without needing a real wire encoding.
type Codec interface {
	Encode(msgName string, payload any) ([]byte, error)
	// Decode returns the message name and a decoded payload whose concrete
	// type matches what the Validator for the in-flight request expects.
	Decode(frame []byte) (msgName string, payload any, err error)
}
