// Package netcore implements the per-peer connection state machine, the
// header-chain sync algorithm run over it, and the dispatcher that fans
// application requests out across the live peer set.
package netcore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/beamlight/flyclient/crypto"
	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/request"
	"github.com/beamlight/flyclient/verify"
)

// Connection is a single peer session: the transport, its advertised
// capabilities, its in-flight request queue, and (when active) the
// bisection sync it is running against the local history.
//
// Each Connection runs one goroutine that reads frames off its Session and
// hands them straight to the onFrame callback given to Start (the owning
// Dispatcher's HandleFrame). Frames from different connections are
// therefore handled concurrently, each on its own connection's goroutine;
// the fields below mu are guarded by it.
type Connection struct {
	id      string
	session Session
	codec   Codec
	logger  *slog.Logger

	kdf       crypto.OwnerKDF
	finalizer crypto.BlockFinalizer
	verifier  verify.Verifier

	// localTip reports the local history's current tip. Set by the
	// Dispatcher when the connection is admitted to the peer set (nil for
	// a bare Connection built in isolation, e.g. by a unit test exercising
	// capability predicates directly).
	localTip func() (history.Header, bool)

	mu            sync.Mutex
	flags         Flags
	peerLogin     LoginFlags
	ourLogin      LoginFlags
	currentTip    history.Header
	hasTip        bool
	sync          *SyncContext
	lastBbsSeenTS uint64

	inFlight []*request.Request

	errorChan chan error
	doneChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConnection wires a Session/Codec pair into a fresh, not-yet-live
// Connection. Callers apply Options to configure logging, the owner KDF,
// and the outbound login flags before calling Start.
func NewConnection(id string, session Session, codec Codec, opts ...Option) *Connection {
	c := &Connection{
		id:       id,
		session:  session,
		codec:    codec,
		logger:   slog.Default(),
		flags:    newFlags(),
		ourLogin: newLoginFlags(),
		verifier: verify.Verifier{
			Hash:     func(history.Header) history.Hash { return history.Hash{} },
			Validate: func(history.Header) bool { return true },
		},
		errorChan: make(chan error, 1),
		doneChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the connection's stable identifier (Client mints a
// google/uuid string for each Session it dials).
func (c *Connection) ID() string { return c.id }

// Start marks the transport live and begins the background read loop that
// feeds frames back to onFrame. The connection is not yet assignable at
// this point: per §4.4's init -> connect -> SecureOut -> login state
// machine, assignment (and Login) waits for OnConnectedSecure.
func (c *Connection) Start(onFrame func(*Connection, string, any)) {
	c.mu.Lock()
	c.flags = c.flags.set(flagLive, true)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(onFrame)
}

// OnConnectedSecure marks the transport secure and sends the client's
// Login, mirroring fly_client.cpp's Connection::OnConnectedSecure. This
// module's Session is defined to already run over a secure channel by the
// time NewConnection receives it (a deployment's Dialer performs whatever
// handshake that requires before returning one), so OnConnectedSecure is
// invoked immediately after Start rather than in response to a distinct
// wire event; it remains a separate transition and flag from Live so
// assignment gates on both, matching the original, and so a future
// handshake implementation has an explicit completion point to call into.
func (c *Connection) OnConnectedSecure() {
	c.mu.Lock()
	c.flags = c.flags.set(flagSecureOut, true)
	c.mu.Unlock()

	if err := c.sendLogin(); err != nil {
		c.fail(err)
	}
}

func (c *Connection) readLoop(onFrame func(*Connection, string, any)) {
	defer c.wg.Done()
	for {
		frame, err := c.session.Recv()
		if err != nil {
			c.fail(&TransportError{ConnectionID: c.id, Reason: err})
			return
		}
		name, payload, err := c.codec.Decode(frame)
		if err != nil {
			c.protocolViolation(fmt.Sprintf("undecodable frame: %v", err))
			return
		}
		onFrame(c, name, payload)
	}
}

func (c *Connection) fail(err error) {
	select {
	case c.errorChan <- err:
	default:
	}
	c.teardown()
}

func (c *Connection) protocolViolation(reason string) {
	c.fail(&ProtocolViolationError{ConnectionID: c.id, Reason: reason})
}

// Errors returns the channel a Dispatcher selects on to learn this
// connection failed. It carries at most one error before the connection
// tears down.
func (c *Connection) Errors() <-chan error { return c.errorChan }

// Done closes when the read loop has exited.
func (c *Connection) Done() <-chan struct{} { return c.doneChan }

func (c *Connection) teardown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.flags = c.flags.set(flagLive, false)
		c.flags = c.flags.set(flagSecureOut, false)
		c.mu.Unlock()
		_ = c.session.Close()
		close(c.doneChan)
	})
}

// Close tears down the transport and stops the read loop. Safe to call
// more than once.
func (c *Connection) Close() error {
	c.teardown()
	c.wg.Wait()
	return nil
}

// --- login ---

func (c *Connection) sendLogin() error {
	c.mu.Lock()
	login := c.ourLogin
	c.mu.Unlock()
	return c.SendMessage("Login", LoginMsg{Flags: login})
}

// HandleLogin records the peer's advertised capability bits and asks the
// Dispatcher to reassign requests now that this connection may support new
// kinds. It does not reissue BBS subscriptions; the frame router does that
// right after calling it.
func (c *Connection) HandleLogin(peerFlags LoginFlags, reassign func()) {
	c.mu.Lock()
	c.peerLogin = peerFlags
	c.mu.Unlock()
	if reassign != nil {
		reassign()
	}
}

// --- authentication ---

// HandleAuthentication processes a two-phase Authentication message: a
// peer first authenticates as a full Node, then optionally proves
// knowledge of the wallet's owner-key derivation to become Owned.
func (c *Connection) HandleAuthentication(idType string, challengeResponse []byte, onOwned func(bool)) error {
	switch idType {
	case "Node":
		c.mu.Lock()
		alreadyNode := c.flags.Node()
		c.flags = c.flags.set(flagNode, true)
		c.mu.Unlock()
		if alreadyNode {
			c.protocolViolation("duplicate Node authentication")
			return errors.New("netcore: duplicate authentication")
		}
		return nil

	case "Viewer":
		if c.kdf == nil {
			return nil
		}
		ok := c.kdf.VerifyObscured(challengeResponse)
		c.mu.Lock()
		c.flags = c.flags.set(flagOwned, ok)
		c.mu.Unlock()
		if ok && onOwned != nil {
			onOwned(true)
		}
		return nil

	default:
		c.protocolViolation("unknown authentication id type " + idType)
		return errors.New("netcore: unknown id type")
	}
}

// --- block finalization (mining co-sign) ---

// HandleGetBlockFinalization answers an Owned peer's request that the
// wallet co-sign a mined block. Unsupported (no finalizer configured, or
// the peer is not Owned) is answered by simply not responding, mirroring
// the original's silent ignore of a request from an unentitled peer.
func (c *Connection) HandleGetBlockFinalization(block []byte) ([]byte, bool) {
	c.mu.Lock()
	owned := c.flags.Owned()
	c.mu.Unlock()
	if !owned || c.finalizer == nil {
		return nil, false
	}
	sig, err := c.finalizer.Finalize(block)
	if err != nil {
		return nil, false
	}
	return sig, true
}

// --- request.Peer / request.Transport ---

// setLocalTipProvider wires the local-history lookup IsAtTip compares the
// peer's advertised tip against. Called once, when the Dispatcher admits
// the connection to its peer set.
func (c *Connection) setLocalTipProvider(f func() (history.Header, bool)) {
	c.mu.Lock()
	c.localTip = f
	c.mu.Unlock()
}

// IsAtTip implements request.Peer: a peer is at tip when its last
// advertised tip is the same header as the local history's current tip
// (fly_client.cpp:596-599). A bare Connection with no dispatcher context
// (no localTip provider installed) reports true so unit tests can exercise
// capability predicates directly without standing up a Dispatcher.
func (c *Connection) IsAtTip() bool {
	c.mu.Lock()
	provider := c.localTip
	peerTip, hasPeerTip := c.currentTip, c.hasTip
	c.mu.Unlock()

	if provider == nil {
		return true
	}
	localTip, hasLocalTip := provider()
	if !hasPeerTip || !hasLocalTip {
		return false
	}
	return peerTip.ID() == localTip.ID()
}

// HasFlag implements request.Peer, resolving connection-state flags
// (Node, Owned) and login-advertised flags (SpreadingTransactions, Bbs)
// under one string-keyed lookup so the request package need not import
// netcore's bitset representation.
func (c *Connection) HasFlag(flag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch flag {
	case "Node":
		return c.flags.Node()
	case "Owned":
		return c.flags.Owned()
	case "SpreadingTransactions":
		return c.peerLogin.SpreadingTransactions()
	case "Bbs":
		return c.peerLogin.Bbs()
	default:
		return false
	}
}

// Pack implements request.PackVerifier, reconstructing and PoW-checking a
// HdrPack response against this connection's configured Verifier.
func (c *Connection) Pack(prefix verify.Prefix, elements []verify.Element, scheduler verify.Scheduler) ([]history.Header, bool) {
	c.mu.Lock()
	v := c.verifier
	c.mu.Unlock()
	return v.Pack(prefix, elements, scheduler)
}

// SendMessage implements request.Transport.
func (c *Connection) SendMessage(name string, payload any) error {
	frame, err := c.codec.Encode(name, payload)
	if err != nil {
		return err
	}
	return c.session.Send(frame)
}

// CurrentTip returns the peer's last-reported tip.
func (c *Connection) CurrentTip() (history.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTip, c.hasTip
}
