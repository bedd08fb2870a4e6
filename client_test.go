package flyclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beamlight/flyclient/config"
	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/netcore"
)

type noopSession struct {
	closed chan struct{}
	once   sync.Once
}

func newNoopSession() *noopSession { return &noopSession{closed: make(chan struct{})} }

func (s *noopSession) Send([]byte) error { return nil }
func (s *noopSession) Recv() ([]byte, error) {
	<-s.closed
	return nil, errors.New("session closed")
}
func (s *noopSession) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type identityCodec struct{}

func (identityCodec) Encode(name string, payload any) ([]byte, error) { return []byte(name), nil }
func (identityCodec) Decode(frame []byte) (string, any, error)        { return string(frame), nil, nil }

type fakeDialer struct {
	mu       sync.Mutex
	dialed   []string
	sessions []*noopSession
	err      error
}

func (d *fakeDialer) Dial(ctx context.Context, peer config.PeerAddress) (netcore.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, peer.Raw)
	if d.err != nil {
		return nil, d.err
	}
	s := newNoopSession()
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

type noopCallbacks struct{}

func (noopCallbacks) OnNewTip(history.Header)                {}
func (noopCallbacks) OnTipUnchanged()                         {}
func (noopCallbacks) OnRolledBack(history.Height)             {}
func (noopCallbacks) OnOwnedNode(string, bool)                {}
func (noopCallbacks) OnNodeConnected(bool)                    {}
func (noopCallbacks) OnConnectionFailed(string, error)        {}
func (noopCallbacks) OnEventsSerif([]byte, history.Height)    {}
func (noopCallbacks) OnNewPeer(string, string)                {}

func TestClientStartDialsEveryConfiguredPeer(t *testing.T) {
	cfg := config.Config{NodeAddresses: []string{"a.example.com:8100", "b.example.com:8100"}}
	dialer := &fakeDialer{}
	client := New(cfg, history.NewMemStore(), noopCallbacks{}, dialer, identityCodec{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))

	require.Eventually(t, func() bool { return dialer.count() == 2 }, time.Second, time.Millisecond)

	client.Stop()
}

func TestClientStopIsIdempotent(t *testing.T) {
	cfg := config.Config{NodeAddresses: []string{"a.example.com:8100"}}
	dialer := &fakeDialer{}
	client := New(cfg, history.NewMemStore(), noopCallbacks{}, dialer, identityCodec{})

	require.NoError(t, client.Start(context.Background()))
	require.Eventually(t, func() bool { return dialer.count() == 1 }, time.Second, time.Millisecond)

	client.Stop()
	client.Stop()
}

func TestClientStartRejectsMalformedPeerAddress(t *testing.T) {
	cfg := config.Config{NodeAddresses: []string{"not-a-valid-address"}}
	client := New(cfg, history.NewMemStore(), noopCallbacks{}, &fakeDialer{}, identityCodec{})

	err := client.Start(context.Background())
	require.Error(t, err)
}
