package request

import (
	"fmt"

	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/verify"
)

// Peer is the capability surface a Capability predicate needs from a
// connection: its connection-state and advertised login flags and whether it currently
// tracks the tip closely enough to answer proof-style queries.
type Peer interface {
	IsAtTip() bool
	HasFlag(flag string) bool
}

// Transport is the minimal send surface a Sender needs. It is satisfied by
// netcore.Connection; defining it here (rather than importing netcore)
// keeps this package free of a dependency on the connection state machine.
type Transport interface {
	SendMessage(msgName string, payload any) error
}

// PackVerifier reconstructs and PoW-checks a wire header pack. It is
// satisfied by netcore.Connection, whose verify.Verifier is configured once
// per Client rather than resolved through package-level state, so two
// Clients in one process can run different PoW/hash rules. Only the
// EnumHeaders and BodyPack validators use it; every other kind ignores the
// parameter.
type PackVerifier interface {
	Pack(prefix verify.Prefix, elements []verify.Element, scheduler verify.Scheduler) ([]history.Header, bool)
}

// Capability reports whether peer currently supports a request kind. Some
// kinds (proofs) require the peer to be at the reported tip; others
// (relaying a transaction) require an advertised login flag.
type Capability func(peer Peer) bool

// Sender writes r.Query onto the wire as the kind's outbound message.
type Sender func(peer Peer, t Transport, r *Request) error

// Validator checks a kind's inbound response message against r.Query,
// populates r.Result on success, and returns an error describing a
// protocol violation on failure (an unrelated, unexpected, or malformed
// response). verifier is the responding connection's PackVerifier, needed
// only by kinds that reconstruct a header pack.
type Validator func(r *Request, msg any, verifier PackVerifier) error

// Entry bundles a request kind's three collaborators.
type Entry struct {
	Capability Capability
	Send       Sender
	Validate   Validator
}

var registry = map[Type]Entry{}

// Register installs the collaborators for typ. Called from package init
// functions in kinds.go; a second registration for the same type is a
// programmer error.
func Register(typ Type, e Entry) {
	if _, exists := registry[typ]; exists {
		panic(fmt.Sprintf("request: duplicate registration for %s", typ))
	}
	registry[typ] = e
}

// Lookup returns the registered Entry for typ.
func Lookup(typ Type) (Entry, bool) {
	e, ok := registry[typ]
	return e, ok
}

// Supports reports whether peer currently supports typ.
func Supports(typ Type, peer Peer) bool {
	e, ok := registry[typ]
	if !ok {
		return false
	}
	return e.Capability(peer)
}
