package request

import "sync/atomic"

// Status tracks a Request's lifecycle from the caller's point of view.
type Status int32

const (
	// StatusPending has not yet been assigned to a connection.
	StatusPending Status = iota
	// StatusActive has been sent to a peer and is awaiting a response.
	StatusActive
	// StatusCancelled was cancelled by its caller; a Dispatcher drops it
	// the next time it would otherwise be assigned or retried.
	StatusCancelled
	// StatusDone completed, successfully or not, and OnComplete has fired
	// (or is about to).
	StatusDone
)

// Handler receives the outcome of a Request it registered interest in.
type Handler interface {
	// OnComplete is called once per Request, when a peer's response has
	// been validated (or, for EnumHeaders and BodyPack, when the peer
	// answered DataMissing). It is not called for a request cancelled
	// before its response arrives; a response that fails validation tears
	// down the connection and the request is requeued rather than
	// completed.
	OnComplete(r *Request)
}

// Query is the kind-specific outbound payload; concrete kinds embed the
// fields their wire message needs (e.g. a UTXO commitment, a height range).
type Query any

// Result is the kind-specific inbound payload a Validator populates.
type Result any

// Request is a single in-flight or queued query against the peer set. It is
// safe to read Status concurrently with a Dispatcher mutating it.
type Request struct {
	Type   Type
	Query  Query
	Result Result

	Target Handler

	status atomic.Int32

	// Success is set once the request completes, distinguishing "peer
	// answered and validated" from "cancelled" or "no supporting peer".
	Success bool
}

// New creates a pending request of the given kind. query is stored as-is
// and interpreted by the registered Sender for typ.
func New(typ Type, query Query, target Handler) *Request {
	r := &Request{Type: typ, Query: query, Target: target}
	r.status.Store(int32(StatusPending))
	return r
}

// Status returns the request's current lifecycle state.
func (r *Request) Status() Status {
	return Status(r.status.Load())
}

// SetStatus is used by the dispatcher package to advance lifecycle state.
func (r *Request) SetStatus(s Status) {
	r.status.Store(int32(s))
}

// Cancel marks the request cancelled. A Dispatcher observing this on its
// next pass drops the request without assigning or retrying it.
func (r *Request) Cancel() {
	r.status.Store(int32(StatusCancelled))
}

// Cancelled reports whether Cancel has been called.
func (r *Request) Cancelled() bool {
	return r.Status() == StatusCancelled
}

// Finish transitions the request to StatusDone, records the outcome, and
// invokes its Target's OnComplete if one was registered.
func (r *Request) Finish(success bool) {
	r.Success = success
	r.status.Store(int32(StatusDone))
	if r.Target != nil {
		r.Target.OnComplete(r)
	}
}
