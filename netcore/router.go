package netcore

import "github.com/beamlight/flyclient/history"

// LoginMsg is the inbound Login payload: the peer's advertised capability
// bits, exchanged before either side authenticates.
type LoginMsg struct {
	Flags LoginFlags
}

// AuthenticationMsg is the inbound two-phase Authentication payload.
type AuthenticationMsg struct {
	IDType            string
	ChallengeResponse []byte
}

// GetBlockFinalizationMsg asks the wallet to co-sign a mined block.
type GetBlockFinalizationMsg struct {
	Block []byte
}

// BlockFinalizationMsg carries the wallet's co-signature back to the peer.
type BlockFinalizationMsg struct {
	Signature []byte
}

// EventsSerifMsg is an owner-events push from an Owned peer.
type EventsSerifMsg struct {
	Value  []byte
	Height history.Height
}

// PeerInfoMsg reports a peer address learned via peer-sharing.
type PeerInfoMsg struct {
	ID      string
	Address string
}

// BbsMsgFrame is an inbound delivery of a subscribed BBS channel message,
// distinct from the outbound BbsMsg a caller posts through the request
// package: the frame router tells the two apart by direction, not name.
type BbsMsgFrame struct {
	Channel []byte
	Message []byte
	Since   uint64
}

// PingMsg has no payload; a Ping is what the peer sends back to
// acknowledge a posted BbsMsg, since BBS delivery has no direct ack of its
// own.
type PingMsg struct{}

// HandleFrame is the single entry point every Connection's read loop feeds
// decoded frames into. It is installed as the onFrame callback passed to
// Connection.Start, and dispatches by message name to the connection's
// state machine, the sync algorithm, the BBS table, or (for anything it
// doesn't recognize by name) the generic request/response matcher.
func (d *Dispatcher) HandleFrame(c *Connection, name string, payload any) {
	switch name {
	case "Login":
		msg, ok := payload.(LoginMsg)
		if !ok {
			c.protocolViolation("malformed Login")
			return
		}
		c.HandleLogin(msg.Flags, d.AssignRequests)
		if err := d.bbs.ReissueAll(c); err != nil {
			c.fail(&TransportError{ConnectionID: c.ID(), Reason: err})
		}

	case "Authentication":
		msg, ok := payload.(AuthenticationMsg)
		if !ok {
			c.protocolViolation("malformed Authentication")
			return
		}
		_ = c.HandleAuthentication(msg.IDType, msg.ChallengeResponse, func(owned bool) {
			d.callbacks.OnOwnedNode(c.ID(), owned)
		})

	case "GetBlockFinalization":
		msg, ok := payload.(GetBlockFinalizationMsg)
		if !ok {
			c.protocolViolation("malformed GetBlockFinalization")
			return
		}
		sig, ok := c.HandleGetBlockFinalization(msg.Block)
		if !ok {
			return
		}
		if err := c.SendMessage("BlockFinalization", BlockFinalizationMsg{Signature: sig}); err != nil {
			c.fail(&TransportError{ConnectionID: c.ID(), Reason: err})
		}

	case "NewTip":
		h, ok := payload.(history.Header)
		if !ok {
			c.protocolViolation("malformed NewTip")
			return
		}
		c.OnNewTip(h, d)

	case "ProofCommonState":
		res, ok := payload.(ProofCommonState)
		if !ok {
			c.protocolViolation("malformed ProofCommonState")
			return
		}
		c.HandleProofCommonState(d, res)

	case "ProofChainWork":
		res, ok := payload.(ProofChainWork)
		if !ok {
			c.protocolViolation("malformed ProofChainWork")
			return
		}
		c.HandleProofChainWork(d, res)

	case "DataMissing":
		if err := d.HandleDataMissing(c); err != nil {
			return
		}

	case "EventsSerif":
		msg, ok := payload.(EventsSerifMsg)
		if !ok {
			c.protocolViolation("malformed EventsSerif")
			return
		}
		d.callbacks.OnEventsSerif(msg.Value, msg.Height)

	case "PeerInfo":
		msg, ok := payload.(PeerInfoMsg)
		if !ok {
			c.protocolViolation("malformed PeerInfo")
			return
		}
		d.callbacks.OnNewPeer(msg.ID, msg.Address)

	case "BbsMsg":
		msg, ok := payload.(BbsMsgFrame)
		if !ok {
			c.protocolViolation("malformed BbsMsg")
			return
		}
		d.bbs.Deliver(string(msg.Channel), msg.Message, msg.Since)

	case "Ping":
		_ = d.HandleResponse(c, PingMsg{})

	default:
		_ = d.HandleResponse(c, payload)
	}
}
