package netcore

import (
	"log/slog"

	"github.com/beamlight/flyclient/crypto"
	"github.com/beamlight/flyclient/verify"
)

// Option is a functional option for configuring a Connection at
// construction time, mirroring the teacher's ConnectionOptionFunc pattern.
type Option func(*Connection)

// WithLogger sets the structured logger used for protocol chatter and
// hard-fault reporting. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithOwnerKDF installs the collaborator used to prove and verify
// knowledge of the wallet's owner-key derivation during authentication.
func WithOwnerKDF(kdf crypto.OwnerKDF) Option {
	return func(c *Connection) {
		c.kdf = kdf
	}
}

// WithBlockFinalizer installs the collaborator that co-signs mining
// finalization requests from an Owned peer.
func WithBlockFinalizer(f crypto.BlockFinalizer) Option {
	return func(c *Connection) {
		c.finalizer = f
	}
}

// WithLoginFlags sets the capability bits this client advertises in its
// outbound Login.
func WithLoginFlags(flags LoginFlags) Option {
	return func(c *Connection) {
		c.ourLogin = flags
	}
}

// WithVerifier installs the header-hash and PoW-validation rule this
// connection's sync loop and header-pack reconstruction use. Threading it
// through construction (rather than a package-level default) lets two
// Clients in the same process run different chains' PoW rules.
func WithVerifier(v verify.Verifier) Option {
	return func(c *Connection) {
		c.verifier = v
	}
}
