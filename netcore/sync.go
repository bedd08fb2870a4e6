package netcore

import (
	"github.com/beamlight/flyclient/history"
)

// SyncContext tracks one connection's in-progress bisection against the
// local History Store. It exists only while the connection believes the
// peer has more chainwork than the local tip.
//
// The GetCommonState/ProofCommonState and GetProofChainWork/ProofChainWork
// rounds live entirely inside this state machine rather than going through
// the request package's capability-routed catalogue: they are not
// something an application caller ever posts, and they must be answered by
// the exact connection that asked, not whichever peer happens to support
// them next.
type SyncContext struct {
	// LowHeight is the floor below which the last confirmed common
	// ancestor search has not probed; other connections' contexts have
	// their floor lowered here when a rollback is discovered elsewhere.
	LowHeight history.Height
	// Confirmed is the most recent header both sides are known to agree
	// on, or nil until the first successful ProofCommonState.
	Confirmed *history.StateID
	// ConfirmedChainWork is Confirmed's chainwork, cached at the moment it
	// was set so requestChainworkProof need not re-walk the store.
	ConfirmedChainWork history.ChainWork
	// TipBeforeGap records the local tip observed when a NewTip arrived
	// mid-sync that was not the direct successor of the old tip,
	// detecting a possible peer reorg during bisection.
	TipBeforeGap *history.Header
	// BatchSize is the number of headers requested in the next
	// GetCommonState round; doubles on each disproof (exponential widen).
	BatchSize int
	// PeerTip is the tip this sync round is chasing.
	PeerTip history.Header

	// awaiting* and the corresponding batch/lowerBound record what the
	// outstanding wire round-trip was for, so the reply handler can be
	// invoked directly from the frame router without a generic in-flight
	// queue lookup.
	awaitingCommonState  bool
	pendingBatch         []history.Header
	awaitingChainwork    bool
	pendingLowerBound    history.ChainWork
}

// OnNewTip implements §4.4's tip-update handling and, if the peer now
// leads on chainwork, kicks off §4.5's sync algorithm.
func (c *Connection) OnNewTip(h history.Header, d *Dispatcher) {
	c.mu.Lock()
	if c.hasTip && h.Equal(c.currentTip) {
		c.mu.Unlock()
		return
	}
	if c.hasTip && h.ChainWork.Cmp(c.currentTip.ChainWork) <= 0 {
		c.mu.Unlock()
		c.protocolViolation("peer tip regressed in chainwork")
		return
	}
	if !c.verifier.Validate(h) {
		c.mu.Unlock()
		c.protocolViolation("peer tip fails PoW validation")
		return
	}

	if c.sync != nil && !c.sync.awaitingCommonState && c.sync.TipBeforeGap == nil && c.hasTip && !h.IsNext(c.currentTip) {
		old := c.currentTip
		c.sync.TipBeforeGap = &old
	}

	hadTip := c.hasTip
	c.currentTip = h
	c.hasTip = true
	c.mu.Unlock()

	localTip, hasLocal := d.store.GetTip()
	localWork := history.NewChainWork(0)
	if hasLocal {
		localWork = localTip.ChainWork
	}
	if localWork.Cmp(h.ChainWork) < 0 {
		c.startSync(d, h)
	} else {
		d.callbacks.OnTipUnchanged()
		if !hadTip {
			d.AssignRequests()
		}
	}
}

// startSync begins §4.5 for peerTip: the fast path if the local tip is
// peerTip's immediate predecessor, else a fresh bisection search.
func (c *Connection) startSync(d *Dispatcher, peerTip history.Header) {
	localTip, hasLocal := d.store.GetTip()

	if hasLocal && peerTip.IsNext(localTip) {
		d.store.AddStates([]history.Header{peerTip})
		d.promoteToFront(c)
		d.AssignRequests()
		d.callbacks.OnNewTip(peerTip)
		return
	}

	low := history.Height(0)
	if hasLocal {
		low = localTip.Height
	}
	c.mu.Lock()
	c.sync = &SyncContext{LowHeight: low, BatchSize: 1, PeerTip: peerTip}
	c.mu.Unlock()

	c.searchBelow(d, low, 1)
}

// GetCommonStateQuery is the outbound GetCommonState wire payload.
type GetCommonStateQuery struct {
	IDs []history.StateID
}

// ProofCommonState is the inbound response: a proof that the matched id is
// (match) or is not (disproof) on the peer's chain, reported against
// whichever id the peer actually holds state for.
type ProofCommonState struct {
	MatchedHeight history.Height
	MatchedHash   history.Hash
	Proof         []byte
	Disproof      bool
}

// searchBelow implements SearchBelow(h, n): gather up to n locally-held
// headers at height <= h, descending, and request a common-state proof for
// them. With none available it jumps straight to the chainwork proof step.
func (c *Connection) searchBelow(d *Dispatcher, h history.Height, n int) {
	var batch []history.Header
	upper := h
	d.store.Enum(history.WalkerFunc(func(hdr history.Header) bool {
		batch = append(batch, hdr)
		return len(batch) < n
	}), &upper)

	if len(batch) == 0 {
		c.requestChainworkProof(d)
		return
	}

	ids := make([]history.StateID, len(batch))
	for i, hdr := range batch {
		ids[i] = hdr.ID()
	}

	c.mu.Lock()
	c.sync.BatchSize = n
	c.sync.awaitingCommonState = true
	c.sync.pendingBatch = batch
	c.mu.Unlock()

	if err := c.SendMessage("GetCommonState", GetCommonStateQuery{IDs: ids}); err != nil {
		c.fail(&TransportError{ConnectionID: c.id, Reason: err})
	}
}

// HandleProofCommonState is invoked by the frame router when a
// ProofCommonState message arrives. It implements §4.5 step 3.
func (c *Connection) HandleProofCommonState(d *Dispatcher, res ProofCommonState) {
	c.mu.Lock()
	sync := c.sync
	if sync == nil || !sync.awaitingCommonState {
		c.mu.Unlock()
		c.protocolViolation("unexpected ProofCommonState")
		return
	}
	sync.awaitingCommonState = false
	batch := sync.pendingBatch
	peerTip := sync.PeerTip
	lowHeight := sync.LowHeight
	batchSize := sync.BatchSize
	c.mu.Unlock()

	batchLast := batch[len(batch)-1]

	var matched *history.Header
	for i := range batch {
		if batch[i].Height == res.MatchedHeight {
			matched = &batch[i]
			break
		}
	}
	if matched == nil {
		if peerTip.Height > batchLast.Height {
			c.protocolViolation("peer proved height outside requested batch")
			return
		}
		c.searchBelow(d, peerTip.Height, 1)
		return
	}

	if lowHeight < batchLast.Height && matched != &batch[0] {
		c.searchBelow(d, lowHeight+1, 1)
		return
	}

	if !res.Disproof && matched.Hash == res.MatchedHash {
		id := matched.ID()
		c.mu.Lock()
		c.sync.Confirmed = &id
		c.sync.ConfirmedChainWork = matched.ChainWork
		c.mu.Unlock()
		c.requestChainworkProof(d)
		return
	}

	if matched.Height != batchLast.Height {
		c.protocolViolation("non-terminal disagreement in common-state batch")
		return
	}
	c.searchBelow(d, batchLast.Height, batchSize*2)
}

// GetProofChainWorkQuery is the outbound GetProofChainWork wire payload.
type GetProofChainWorkQuery struct {
	LowerBound history.ChainWork
}

// ProofChainWork is the inbound response: a proof that yields a tip and
// unpacks into a height-sorted header array.
type ProofChainWork struct {
	LowerBound history.ChainWork
	Valid      bool
	Tip        history.Header
	Headers    []history.Header
}

// requestChainworkProof implements §4.5 step 4. Whichever branch is taken,
// the confirmed common ancestor (height 0 if none was ever confirmed)
// becomes the rollback floor for postChainworkProof, and any gap recorded
// before this point is cleared: a gap arriving from here on, while the
// chainwork proof round-trip is outstanding, is what postChainworkProof's
// reorg check is watching for.
func (c *Connection) requestChainworkProof(d *Dispatcher) {
	c.mu.Lock()
	owned := c.flags.Owned()
	sync := c.sync
	c.mu.Unlock()

	confirmedHeight := history.Height(0)
	if sync.Confirmed != nil {
		confirmedHeight = sync.Confirmed.Height
	}

	if owned {
		c.mu.Lock()
		c.sync.LowHeight = confirmedHeight
		c.sync.TipBeforeGap = nil
		c.mu.Unlock()
		c.postChainworkProof(d, nil)
		return
	}

	lower := history.NewChainWork(0)
	if sync.Confirmed != nil {
		lower = sync.ConfirmedChainWork
	}

	c.mu.Lock()
	c.sync.awaitingChainwork = true
	c.sync.pendingLowerBound = lower
	c.sync.LowHeight = confirmedHeight
	c.sync.TipBeforeGap = nil
	c.mu.Unlock()

	if err := c.SendMessage("GetProofChainWork", GetProofChainWorkQuery{LowerBound: lower}); err != nil {
		c.fail(&TransportError{ConnectionID: c.id, Reason: err})
	}
}

// HandleProofChainWork is invoked by the frame router when a
// ProofChainWork message arrives.
func (c *Connection) HandleProofChainWork(d *Dispatcher, res ProofChainWork) {
	c.mu.Lock()
	sync := c.sync
	if sync == nil || !sync.awaitingChainwork {
		c.mu.Unlock()
		c.protocolViolation("unexpected ProofChainWork")
		return
	}
	sync.awaitingChainwork = false
	lowerBound := sync.pendingLowerBound
	peerTip := c.currentTip
	c.mu.Unlock()

	if !res.Valid || res.LowerBound.Cmp(lowerBound) != 0 {
		c.protocolViolation("chainwork proof lower bound mismatch or invalid")
		return
	}
	if !res.Tip.Equal(peerTip) {
		c.protocolViolation("chainwork proof does not resolve to reported tip")
		return
	}
	c.postChainworkProof(d, res.Headers)
}

// postChainworkProof implements §4.5 steps 5-7: reorg detection, rollback,
// and adoption of the proof array.
func (c *Connection) postChainworkProof(d *Dispatcher, proof []history.Header) {
	c.mu.Lock()
	sync := c.sync
	peerTip := sync.PeerTip
	confirmed := sync.Confirmed
	tipBeforeGap := sync.TipBeforeGap
	c.mu.Unlock()

	if confirmed != nil && tipBeforeGap != nil {
		foundConfirmed, foundGap := false, false
		for _, h := range proof {
			if h.ID() == *confirmed {
				foundConfirmed = true
			}
			if h.Equal(*tipBeforeGap) {
				foundGap = true
			}
		}
		if !foundConfirmed && !foundGap {
			d.metrics.SyncRestarted()
			c.mu.Lock()
			c.sync = nil
			c.mu.Unlock()
			c.startSync(d, peerTip)
			return
		}
	}

	if !c.shouldSync(d) {
		c.mu.Lock()
		c.sync = nil
		c.mu.Unlock()
		return
	}

	lowHeight := sync.LowHeight
	var eraseFrom *history.Height
	proofHas := make(map[history.Height]history.Hash, len(proof))
	for _, h := range proof {
		proofHas[h.Height] = h.Hash
	}
	d.store.Enum(history.WalkerFunc(func(hdr history.Header) bool {
		if hdr.Height <= lowHeight {
			return false
		}
		if want, ok := proofHas[hdr.Height]; !ok || want != hdr.Hash {
			height := hdr.Height
			eraseFrom = &height
		}
		return true
	}), nil)

	if eraseFrom != nil {
		d.store.DeleteFrom(*eraseFrom)
		d.lowerSyncFloors(c, *eraseFrom)
		d.callbacks.OnRolledBack(*eraseFrom)
	}

	toAppend := proof
	if len(toAppend) == 0 {
		toAppend = []history.Header{peerTip}
	}
	d.store.AddStates(toAppend)

	c.mu.Lock()
	c.sync = nil
	c.mu.Unlock()

	d.promoteToFront(c)
	d.callbacks.OnNewTip(peerTip)
	d.AssignRequests()
}

// shouldSync implements the tie-break: only the fastest connection to
// finish a round gets to adopt its tip; a slower one silently discards its
// SyncContext once another connection's local tip has already caught up.
func (c *Connection) shouldSync(d *Dispatcher) bool {
	localTip, ok := d.store.GetTip()
	if !ok {
		return true
	}
	c.mu.Lock()
	peerTip := c.sync.PeerTip
	c.mu.Unlock()
	return localTip.ChainWork.Cmp(peerTip.ChainWork) < 0
}
