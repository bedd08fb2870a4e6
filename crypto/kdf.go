// Package crypto declares the key-derivation and signing collaborators the
// sync core consults during peer authentication and mining finalization.
// Elliptic-curve scalar and point arithmetic are explicitly out of scope
// here (see DESIGN.md): a concrete implementation lives outside this
// module and is injected through these interfaces.
package crypto

// OwnerKDF proves and verifies knowledge of a wallet's owner-key
// derivation during the Viewer phase of connection authentication.
type OwnerKDF interface {
	// ProveObscured produces the challenge response this client sends
	// when authenticating itself as a Viewer to a peer.
	ProveObscured(challenge []byte) ([]byte, error)
	// VerifyObscured checks a challenge response received from a peer
	// claiming to be an authenticated Viewer of this wallet.
	VerifyObscured(response []byte) bool
}

// BlockFinalizer co-signs a block on behalf of an Owned peer that asked
// this client to complete a mining finalization round.
type BlockFinalizer interface {
	Finalize(block []byte) ([]byte, error)
}
