package netcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/beamlight/flyclient/history"
)

type fakeKDF struct {
	verifyResult bool
}

func (f fakeKDF) ProveObscured(challenge []byte) ([]byte, error) { return challenge, nil }
func (f fakeKDF) VerifyObscured(response []byte) bool            { return f.verifyResult }

type fakeFinalizer struct {
	sig []byte
	err error
}

func (f fakeFinalizer) Finalize(block []byte) ([]byte, error) { return f.sig, f.err }

func newTestConnection(t *testing.T, opts ...Option) (*Connection, *scriptedSession) {
	t.Helper()
	session := newScriptedSession()
	c := NewConnection("peer-1", session, boxingCodec{}, opts...)
	return c, session
}

// markLiveSecure drives a test Connection straight to the Live+SecureOut
// state without standing up a real read loop, for tests exercising
// dispatcher assignment logic that don't otherwise care about the
// connect/secure/login transition itself.
func markLiveSecure(c *Connection) {
	c.mu.Lock()
	c.flags = c.flags.set(flagLive, true)
	c.flags = c.flags.set(flagSecureOut, true)
	c.mu.Unlock()
}

// markAtTip gives store a one-header chain and reports c's peer tip as
// that same header, so c.IsAtTip() reports true for tests exercising
// tip-gated request capability without driving a full sync.
func markAtTip(store history.Store, c *Connection) {
	tip := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{tip})
	c.mu.Lock()
	c.currentTip, c.hasTip = tip, true
	c.mu.Unlock()
}

func TestStartDoesNotAssignUntilSecure(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, session := newTestConnection(t)

	var frames []string
	c.Start(func(_ *Connection, name string, _ any) { frames = append(frames, name) })

	require.False(t, c.flags.SecureOut())
	require.Empty(t, session.Sent())

	c.OnConnectedSecure()
	require.True(t, c.flags.SecureOut())

	require.Eventually(t, func() bool { return len(session.Sent()) == 1 }, time.Second, time.Millisecond)
	name, _, err := boxingCodec{}.Decode(session.Sent()[0])
	require.NoError(t, err)
	require.Equal(t, "Login", name)

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection did not tear down")
	}
}

func TestHandleAuthenticationNodeRejectsDuplicate(t *testing.T) {
	c, _ := newTestConnection(t)

	require.NoError(t, c.HandleAuthentication("Node", nil, nil))
	require.True(t, c.HasFlag("Node"))

	err := c.HandleAuthentication("Node", nil, nil)
	require.Error(t, err)

	select {
	case protoErr := <-c.Errors():
		require.ErrorContains(t, protoErr, "duplicate")
	case <-time.After(time.Second):
		t.Fatal("expected a protocol violation error")
	}
}

func TestHandleAuthenticationViewerSuccessSetsOwned(t *testing.T) {
	c, _ := newTestConnection(t, WithOwnerKDF(fakeKDF{verifyResult: true}))

	var ownedCalls []bool
	err := c.HandleAuthentication("Viewer", []byte("proof"), func(owned bool) {
		ownedCalls = append(ownedCalls, owned)
	})
	require.NoError(t, err)
	require.True(t, c.HasFlag("Owned"))
	require.Equal(t, []bool{true}, ownedCalls)
}

func TestHandleAuthenticationViewerFailureLeavesUnowned(t *testing.T) {
	c, _ := newTestConnection(t, WithOwnerKDF(fakeKDF{verifyResult: false}))

	var called bool
	err := c.HandleAuthentication("Viewer", []byte("bad"), func(bool) { called = true })
	require.NoError(t, err)
	require.False(t, c.HasFlag("Owned"))
	require.False(t, called)
}

func TestHandleAuthenticationUnknownIDTypeIsProtocolViolation(t *testing.T) {
	c, _ := newTestConnection(t)

	err := c.HandleAuthentication("Bogus", nil, nil)
	require.Error(t, err)

	select {
	case protoErr := <-c.Errors():
		require.ErrorContains(t, protoErr, "unknown authentication id type")
	case <-time.After(time.Second):
		t.Fatal("expected a protocol violation error")
	}
}

func TestHandleGetBlockFinalizationRequiresOwnedAndFinalizer(t *testing.T) {
	c, _ := newTestConnection(t, WithBlockFinalizer(fakeFinalizer{sig: []byte("sig")}))

	_, ok := c.HandleGetBlockFinalization([]byte("block"))
	require.False(t, ok, "not Owned yet")

	c.mu.Lock()
	c.flags = c.flags.set(flagOwned, true)
	c.mu.Unlock()

	sig, ok := c.HandleGetBlockFinalization([]byte("block"))
	require.True(t, ok)
	require.Equal(t, []byte("sig"), sig)
}

func TestHasFlagResolvesFlagsAndLoginFlags(t *testing.T) {
	c, _ := newTestConnection(t)

	require.False(t, c.HasFlag("Node"))
	require.NoError(t, c.HandleAuthentication("Node", nil, nil))
	require.True(t, c.HasFlag("Node"))

	c.HandleLogin(newLoginFlags().WithBbs(true).WithSpreadingTransactions(true), nil)
	require.True(t, c.HasFlag("Bbs"))
	require.True(t, c.HasFlag("SpreadingTransactions"))
	require.False(t, c.HasFlag("Unknown"))
}

func TestSendMessageRoundTripsThroughCodec(t *testing.T) {
	c, session := newTestConnection(t)

	require.NoError(t, c.SendMessage("GetProofUtxo", []byte("commitment")))
	require.Len(t, session.Sent(), 1)

	name, payload, err := boxingCodec{}.Decode(session.Sent()[0])
	require.NoError(t, err)
	require.Equal(t, "GetProofUtxo", name)
	require.Equal(t, []byte("commitment"), payload)
}

func TestIsAtTipTrueWithoutLocalTipProvider(t *testing.T) {
	c, _ := newTestConnection(t)
	require.True(t, c.IsAtTip(), "a bare Connection with no Dispatcher-installed provider always reports at-tip")

	c.mu.Lock()
	c.sync = &SyncContext{}
	c.mu.Unlock()
	require.True(t, c.IsAtTip())
}

func TestIsAtTipComparesPeerTipAgainstLocalTip(t *testing.T) {
	c, _ := newTestConnection(t)
	store := history.NewMemStore()
	local := header(1, history.Hash{}, 10)
	store.AddStates([]history.Header{local})
	c.setLocalTipProvider(store.GetTip)

	require.False(t, c.IsAtTip(), "no peer tip reported yet")

	c.mu.Lock()
	c.currentTip, c.hasTip = header(0, history.Hash{}, 0), true
	c.mu.Unlock()
	require.False(t, c.IsAtTip(), "peer tip lags the local tip")

	c.mu.Lock()
	c.currentTip, c.hasTip = local, true
	c.mu.Unlock()
	require.True(t, c.IsAtTip())
}
