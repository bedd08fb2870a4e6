package netcore

import "github.com/bits-and-blooms/bitset"

// Connection flag bits. Named rather than enumerated because they are
// orthogonal: a connection can be Live and SecureOut and Node all at once,
// which a single-value state enum cannot express cleanly.
const (
	flagLive = iota
	flagSecureOut
	flagNode
	flagOwned
	flagReportedConnected

	numFlags
)

// Flags is the connection state machine's set of orthogonal boolean
// states, backed by a bitset. A plain copy of Flags shares the underlying
// bitset (set mutates it in place); Snapshot returns an independent copy.
type Flags struct {
	bits *bitset.BitSet
}

func newFlags() Flags {
	return Flags{bits: bitset.New(numFlags)}
}

func (f Flags) set(bit uint, v bool) Flags {
	if v {
		f.bits.Set(bit)
	} else {
		f.bits.Clear(bit)
	}
	return f
}

func (f Flags) Live() bool              { return f.bits.Test(flagLive) }
func (f Flags) SecureOut() bool         { return f.bits.Test(flagSecureOut) }
func (f Flags) Node() bool              { return f.bits.Test(flagNode) }
func (f Flags) Owned() bool             { return f.bits.Test(flagOwned) }
func (f Flags) ReportedConnected() bool { return f.bits.Test(flagReportedConnected) }

// Snapshot returns an independent copy so callers can read flags without
// racing a concurrent mutation (Connection methods that mutate flags hold
// their own lock; Snapshot is for handing state to code outside that lock,
// e.g. request.Peer implementations).
func (f Flags) Snapshot() Flags {
	return Flags{bits: f.bits.Clone()}
}

// LoginFlags are the capability bits exchanged in the Login message.
const (
	loginMiningFinalization = iota
	loginSendPeers
	loginSpreadingTransactions
	loginBbs

	numLoginFlags
)

// LoginFlags is the set of capability bits a peer advertised in its Login,
// or that this Client advertises in its own outbound Login.
type LoginFlags struct {
	bits *bitset.BitSet
}

func newLoginFlags() LoginFlags {
	return LoginFlags{bits: bitset.New(numLoginFlags)}
}

// NewLoginFlags returns an empty LoginFlags value, the starting point for
// a deployment building the capability bits it advertises in its outbound
// Login via the With* builder methods.
func NewLoginFlags() LoginFlags {
	return newLoginFlags()
}

func (f LoginFlags) set(bit uint, v bool) LoginFlags {
	if v {
		f.bits.Set(bit)
	} else {
		f.bits.Clear(bit)
	}
	return f
}

func (f LoginFlags) MiningFinalization() bool   { return f.bits.Test(loginMiningFinalization) }
func (f LoginFlags) SendPeers() bool            { return f.bits.Test(loginSendPeers) }
func (f LoginFlags) SpreadingTransactions() bool { return f.bits.Test(loginSpreadingTransactions) }
func (f LoginFlags) Bbs() bool                  { return f.bits.Test(loginBbs) }

// WithMiningFinalization returns f with the mining-finalization bit set to v.
func (f LoginFlags) WithMiningFinalization(v bool) LoginFlags { return f.set(loginMiningFinalization, v) }

// WithSendPeers returns f with the send-peers bit set to v.
func (f LoginFlags) WithSendPeers(v bool) LoginFlags { return f.set(loginSendPeers, v) }

// WithSpreadingTransactions returns f with the transaction-relay bit set to v.
func (f LoginFlags) WithSpreadingTransactions(v bool) LoginFlags {
	return f.set(loginSpreadingTransactions, v)
}

// WithBbs returns f with the BBS-subscriber bit set to v.
func (f LoginFlags) WithBbs(v bool) LoginFlags { return f.set(loginBbs, v) }

// GobEncode implements gob.GobEncoder. LoginFlags is the one flag set that
// actually crosses the wire (in the Login message); bitset.BitSet's own
// fields are unexported, so gob needs an explicit hook rather than falling
// back to reflection.
func (f LoginFlags) GobEncode() ([]byte, error) {
	if f.bits == nil {
		return newLoginFlags().bits.MarshalBinary()
	}
	return f.bits.MarshalBinary()
}

// GobDecode implements gob.GobDecoder.
func (f *LoginFlags) GobDecode(data []byte) error {
	bits := &bitset.BitSet{}
	if err := bits.UnmarshalBinary(data); err != nil {
		return err
	}
	f.bits = bits
	return nil
}
