package netcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/beamlight/flyclient/history"
)

type fakeSyncCallbacks struct {
	newTips     []history.Header
	rolledBack  []history.Height
	tipUnchanged int
}

func (f *fakeSyncCallbacks) OnNewTip(tip history.Header)             { f.newTips = append(f.newTips, tip) }
func (f *fakeSyncCallbacks) OnTipUnchanged()                         { f.tipUnchanged++ }
func (f *fakeSyncCallbacks) OnRolledBack(h history.Height)           { f.rolledBack = append(f.rolledBack, h) }
func (f *fakeSyncCallbacks) OnOwnedNode(string, bool)                {}
func (f *fakeSyncCallbacks) OnNodeConnected(bool)                    {}
func (f *fakeSyncCallbacks) OnConnectionFailed(string, error)        {}
func (f *fakeSyncCallbacks) OnEventsSerif([]byte, history.Height)    {}
func (f *fakeSyncCallbacks) OnNewPeer(string, string)                {}

func header(height history.Height, prev history.Hash, work int64) history.Header {
	var hash history.Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	return history.Header{
		Height:    height,
		Prev:      prev,
		Hash:      hash,
		ChainWork: history.NewChainWork(work),
	}
}

func newTestDispatcher(store history.Store, cb Callbacks) *Dispatcher {
	return NewDispatcher(store, cb, WithDispatcherConfig(DispatcherConfig{
		ReconnectTimeoutMS: 1000,
		TargetBlockTimeS:   1,
	}))
}

func TestOnNewTipFastPathAppendsAndPromotes(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{genesis})

	cb := &fakeSyncCallbacks{}
	d := newTestDispatcher(store, cb)
	c, _ := newTestConnection(t)
	d.AddConnection(c)

	next := header(2, genesis.Hash, 20)
	c.OnNewTip(next, d)

	tip, ok := store.GetTip()
	require.True(t, ok)
	require.Equal(t, next.Height, tip.Height)
	require.Len(t, cb.newTips, 1)
	require.Equal(t, next.Height, cb.newTips[0].Height)
}

func TestOnNewTipFiresTipUnchangedWhenPeerLagsLocal(t *testing.T) {
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	local := header(2, genesis.Hash, 20)
	store.AddStates([]history.Header{genesis, local})

	cb := &fakeSyncCallbacks{}
	d := newTestDispatcher(store, cb)
	c, _ := newTestConnection(t)
	d.AddConnection(c)

	c.OnNewTip(header(1, history.Hash{}, 10), d)

	require.Equal(t, 1, cb.tipUnchanged)
	require.Empty(t, cb.newTips)

	c.mu.Lock()
	syncStarted := c.sync != nil
	c.mu.Unlock()
	require.False(t, syncStarted)
}

func TestOnNewTipRejectsRegressedChainwork(t *testing.T) {
	c, _ := newTestConnection(t)
	high := header(5, history.Hash{}, 100)
	c.mu.Lock()
	c.currentTip, c.hasTip = high, true
	c.mu.Unlock()

	store := history.NewMemStore()
	d := newTestDispatcher(store, &fakeSyncCallbacks{})

	low := header(4, history.Hash{}, 50)
	c.OnNewTip(low, d)

	select {
	case err := <-c.Errors():
		require.ErrorContains(t, err, "regressed")
	case <-time.After(time.Second):
		t.Fatal("expected protocol violation for chainwork regression")
	}
}

func TestStartSyncBeginsBisectionWhenNotDirectSuccessor(t *testing.T) {
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{genesis})

	d := newTestDispatcher(store, &fakeSyncCallbacks{})
	c, session := newTestConnection(t)
	d.AddConnection(c)

	// A tip far beyond the immediate successor forces bisection rather
	// than the fast path.
	distant := header(50, history.Hash{7}, 5000)
	c.startSync(d, distant)

	require.NotNil(t, c.sync)
	require.Len(t, session.Sent(), 1)
	name, payload, err := boxingCodec{}.Decode(session.Sent()[0])
	require.NoError(t, err)
	require.Equal(t, "GetCommonState", name)
	query, ok := payload.(GetCommonStateQuery)
	require.True(t, ok)
	require.Len(t, query.IDs, 1)
	require.Equal(t, genesis.ID(), query.IDs[0])
}

func TestHandleProofCommonStateConfirmsAndRequestsChainwork(t *testing.T) {
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{genesis})

	d := newTestDispatcher(store, &fakeSyncCallbacks{})
	c, session := newTestConnection(t)
	d.AddConnection(c)

	peerTip := header(50, history.Hash{7}, 5000)
	c.startSync(d, peerTip)

	c.HandleProofCommonState(d, ProofCommonState{
		MatchedHeight: genesis.Height,
		MatchedHash:   genesis.Hash,
		Disproof:      false,
	})

	c.mu.Lock()
	confirmed := c.sync.Confirmed
	awaitingChainwork := c.sync.awaitingChainwork
	c.mu.Unlock()
	require.NotNil(t, confirmed)
	require.Equal(t, genesis.ID(), *confirmed)
	require.True(t, awaitingChainwork)

	frames := session.sentNames(boxingCodec{})
	require.Equal(t, []string{"GetCommonState", "GetProofChainWork"}, frames)
}

func TestPostChainworkProofAdoptsExtendingProof(t *testing.T) {
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{genesis})

	cb := &fakeSyncCallbacks{}
	d := newTestDispatcher(store, cb)
	c, _ := newTestConnection(t)
	d.AddConnection(c)

	h2 := header(2, genesis.Hash, 20)
	h3 := header(3, h2.Hash, 30)
	peerTip := h3

	c.mu.Lock()
	c.sync = &SyncContext{LowHeight: 1, PeerTip: peerTip}
	c.mu.Unlock()

	c.postChainworkProof(d, []history.Header{h2, h3})

	tip, ok := store.GetTip()
	require.True(t, ok)
	require.Equal(t, h3.Height, tip.Height)
	require.Len(t, cb.newTips, 1)

	c.mu.Lock()
	syncGone := c.sync == nil
	c.mu.Unlock()
	require.True(t, syncGone)
}

func TestPostChainworkProofRollsBackOnDivergence(t *testing.T) {
	store := history.NewMemStore()
	genesis := header(1, history.Hash{}, 10)
	badH2 := header(2, genesis.Hash, 15)
	store.AddStates([]history.Header{genesis, badH2})

	cb := &fakeSyncCallbacks{}
	d := newTestDispatcher(store, cb)
	c, _ := newTestConnection(t)
	d.AddConnection(c)

	goodH2 := header(2, genesis.Hash, 20)
	goodH2.Hash[31] = 0xAB // diverges from badH2's hash
	h3 := header(3, goodH2.Hash, 30)

	c.mu.Lock()
	c.sync = &SyncContext{LowHeight: 1, PeerTip: h3}
	c.mu.Unlock()

	c.postChainworkProof(d, []history.Header{goodH2, h3})

	require.Len(t, cb.rolledBack, 1)
	require.Equal(t, history.Height(2), cb.rolledBack[0])

	tip, ok := store.GetTip()
	require.True(t, ok)
	require.Equal(t, h3.Height, tip.Height)
}

// TestRequestChainworkProofLowersFloorToConfirmedAncestor drives the
// bisection's last two steps the way a real reorg resolves: a common
// ancestor at height 97 was already confirmed, but the sync context's
// LowHeight still carries the height it started the search from (99, the
// local tip at the time). requestChainworkProof must lower LowHeight to
// the confirmed ancestor before the proof round-trip, or postChainworkProof
// never walks far enough down to find where the local chain and the
// peer's proof diverge, and the mismatched local headers are left in
// place for the next AddStates call to reject as non-contiguous.
func TestRequestChainworkProofLowersFloorToConfirmedAncestor(t *testing.T) {
	store := history.NewMemStore()

	base := make([]history.Header, 97)
	var prevHash history.Hash
	for i := range base {
		h := header(history.Height(i+1), prevHash, int64(10*(i+1)))
		base[i] = h
		prevHash = h.Hash
	}
	store.AddStates(base)
	h97 := base[96]

	badH98 := header(98, h97.Hash, 980)
	badH98.Hash[31] = 0x01
	badH99 := header(99, badH98.Hash, 990)
	badH99.Hash[31] = 0x01
	store.AddStates([]history.Header{badH98, badH99})

	goodH98 := header(98, h97.Hash, 980)
	goodH98.Hash[31] = 0x02
	goodH99 := header(99, goodH98.Hash, 990)
	goodH99.Hash[31] = 0x02
	peerTip := header(100, goodH99.Hash, 1100)

	cb := &fakeSyncCallbacks{}
	d := newTestDispatcher(store, cb)
	c, _ := newTestConnection(t)
	d.AddConnection(c)

	confirmed := h97.ID()
	c.mu.Lock()
	c.currentTip, c.hasTip = peerTip, true
	c.sync = &SyncContext{
		LowHeight:          99,
		PeerTip:            peerTip,
		Confirmed:          &confirmed,
		ConfirmedChainWork: h97.ChainWork,
	}
	c.mu.Unlock()

	c.requestChainworkProof(d)

	c.mu.Lock()
	require.Equal(t, history.Height(97), c.sync.LowHeight)
	require.Nil(t, c.sync.TipBeforeGap)
	c.mu.Unlock()

	c.HandleProofChainWork(d, ProofChainWork{
		LowerBound: h97.ChainWork,
		Valid:      true,
		Tip:        peerTip,
		Headers:    []history.Header{goodH98, goodH99, peerTip},
	})

	require.Len(t, cb.rolledBack, 1)
	require.Equal(t, history.Height(98), cb.rolledBack[0])

	tip, ok := store.GetTip()
	require.True(t, ok)
	require.Equal(t, peerTip.Height, tip.Height)
	require.Equal(t, peerTip.Hash, tip.Hash)
}

func TestShouldSyncFalseWhenLocalTipAlreadyAhead(t *testing.T) {
	store := history.NewMemStore()
	tip := header(10, history.Hash{}, 1000)
	store.AddStates([]history.Header{tip})

	d := newTestDispatcher(store, &fakeSyncCallbacks{})
	c, _ := newTestConnection(t)

	lowerPeerTip := header(5, history.Hash{}, 500)
	c.mu.Lock()
	c.sync = &SyncContext{PeerTip: lowerPeerTip}
	c.mu.Unlock()

	require.False(t, c.shouldSync(d))
}
