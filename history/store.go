// Package history defines the local, verified view of chain headers that
// the sync state machine reconciles against a remote tip, and the storage
// interface used to persist it.
package history

import (
	"math/big"
)

// Height is a block height, counted from the genesis header.
type Height uint64

// Hash is a 32-byte header commitment.
type Hash [32]byte

// ChainWork is the cumulative sum of per-block difficulty along a chain.
type ChainWork struct {
	*big.Int
}

// NewChainWork wraps an integer chainwork value.
func NewChainWork(v int64) ChainWork {
	return ChainWork{big.NewInt(v)}
}

// Cmp orders two chainwork values, treating a nil underlying value as zero.
func (c ChainWork) Cmp(o ChainWork) int {
	a, b := c.Int, o.Int
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

// Add returns c + d.
func (c ChainWork) Add(d uint64) ChainWork {
	base := c.Int
	if base == nil {
		base = new(big.Int)
	}
	return ChainWork{new(big.Int).Add(base, new(big.Int).SetUint64(d))}
}

// GobDecode implements gob.GobDecoder. It allocates the Int before
// decoding into it; the GobDecode promoted from *big.Int would dereference
// the nil Int of a freshly allocated ChainWork.
func (c *ChainWork) GobDecode(buf []byte) error {
	c.Int = new(big.Int)
	return c.Int.GobDecode(buf)
}

// Header is a locally cached or peer-announced block header. The core never
// interprets block bodies, so Extra carries whatever chain-specific Merkle
// roots and proof material a concrete deployment needs without this package
// knowing their layout.
type Header struct {
	Height     Height
	ChainWork  ChainWork
	Difficulty uint64
	Prev       Hash
	Hash       Hash
	Extra      []byte
}

// IsNext reports whether h is the immediate successor of prev: one height
// higher, and linked by hash.
func (h Header) IsNext(prev Header) bool {
	return h.Height == prev.Height+1 && h.Prev == prev.Hash
}

// Equal reports whether two headers describe the same chain state.
func (h Header) Equal(o Header) bool {
	return h.Height == o.Height && h.Hash == o.Hash
}

// StateID is the projection used when requesting a proof that a specific
// historical header is on a peer's chain.
type StateID struct {
	Height Height
	Hash   Hash
}

// ID returns the StateID projection of h.
func (h Header) ID() StateID {
	return StateID{Height: h.Height, Hash: h.Hash}
}

// Walker receives headers from Store.Enum in strictly descending height
// order. Returning false stops enumeration early.
type Walker interface {
	OnState(h Header) bool
}

// WalkerFunc adapts a function to the Walker interface.
type WalkerFunc func(Header) bool

// OnState implements Walker.
func (f WalkerFunc) OnState(h Header) bool { return f(h) }

// Store is the History Store: the append/enum/truncate interface the core
// consumes to persist and query verified headers. Implementations are
// responsible for making AddStates callers observe monotonicity: violating
// it is a programmer error (§7 class 3), not a recoverable condition.
type Store interface {
	// GetTip returns the maximum (chainwork, height) header, or false if the
	// store is empty.
	GetTip() (Header, bool)
	// Enum invokes walker.OnState for each stored header with height at most
	// upperBound (or all headers, if upperBound is nil) in strictly
	// descending height order, stopping when the walker returns false.
	Enum(walker Walker, upperBound *Height)
	// AddStates appends headers in ascending height order. Each header must
	// link to the current tip (or to the previous header in the slice) by
	// prev-hash, with strictly increasing chainwork. Violating this is a
	// programmer error and implementations may panic.
	AddStates(headers []Header)
	// DeleteFrom truncates the store, removing every header with height >=
	// from.
	DeleteFrom(from Height)
}
