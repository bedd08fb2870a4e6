package netcore

import "github.com/beamlight/flyclient/history"

// Callbacks is the set of upcalls the dispatcher makes into the
// application. Each is a plain call on whichever goroutine handled the
// triggering event (usually the read goroutine of the connection
// concerned), so upcalls caused by different connections can run
// concurrently. The core makes no assumption about reentrancy, so
// implementations must tolerate being called again from within one of
// these calls.
type Callbacks interface {
	// OnNewTip fires after the local tip strictly advances.
	OnNewTip(tip history.Header)
	// OnTipUnchanged fires when a peer announces a tip whose chainwork does
	// not exceed the local tip's, so no sync starts.
	OnTipUnchanged()
	// OnRolledBack fires before the OnNewTip that follows a rollback.
	OnRolledBack(newLowHeight history.Height)
	// OnOwnedNode fires when a peer proves knowledge of the owner key, or
	// when that peer disconnects (connected == false).
	OnOwnedNode(connectionID string, connected bool)
	// OnNodeConnected fires when the set of live connections transitions
	// between empty and non-empty.
	OnNodeConnected(connected bool)
	// OnConnectionFailed fires on a transport failure (class 2 error).
	OnConnectionFailed(connectionID string, reason error)
	// OnEventsSerif delivers an owner-events notification pushed by an
	// Owned peer, carrying the wallet-relevant serialized value and the
	// height it was emitted at.
	OnEventsSerif(value []byte, height history.Height)
	// OnNewPeer reports a peer address learned via peer-sharing.
	OnNewPeer(id string, address string)
}
