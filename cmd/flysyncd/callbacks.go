package main

import (
	"log/slog"

	"github.com/beamlight/flyclient/history"
)

// loggingCallbacks is the reference netcore.Callbacks implementation this
// daemon runs with: it just logs every upcall. A real wallet application
// would replace this with one that updates its own UTXO set and UI state.
type loggingCallbacks struct {
	logger *slog.Logger
}

func (c *loggingCallbacks) OnNewTip(tip history.Header) {
	c.logger.Info("new tip", "height", tip.Height, "hash", tip.Hash)
}

func (c *loggingCallbacks) OnTipUnchanged() {
	c.logger.Debug("peer tip does not exceed local tip")
}

func (c *loggingCallbacks) OnRolledBack(newLowHeight history.Height) {
	c.logger.Warn("rolled back", "new_low_height", newLowHeight)
}

func (c *loggingCallbacks) OnOwnedNode(connectionID string, connected bool) {
	c.logger.Info("owned node state changed", "connection_id", connectionID, "connected", connected)
}

func (c *loggingCallbacks) OnNodeConnected(connected bool) {
	c.logger.Info("node connectivity changed", "connected", connected)
}

func (c *loggingCallbacks) OnConnectionFailed(connectionID string, reason error) {
	c.logger.Warn("connection failed", "connection_id", connectionID, "reason", reason)
}

func (c *loggingCallbacks) OnEventsSerif(value []byte, height history.Height) {
	c.logger.Info("owner events received", "height", height, "bytes", len(value))
}

func (c *loggingCallbacks) OnNewPeer(id string, address string) {
	c.logger.Debug("learned peer", "id", id, "address", address)
}
