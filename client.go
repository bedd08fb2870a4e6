package flyclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beamlight/flyclient/config"
	"github.com/beamlight/flyclient/crypto"
	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/metrics"
	"github.com/beamlight/flyclient/netcore"
	"github.com/beamlight/flyclient/request"
	"github.com/beamlight/flyclient/verify"
)

// Callbacks is the application-visible upcall surface, re-exported so
// callers configuring a Client don't need to import netcore directly.
type Callbacks = netcore.Callbacks

// Dialer opens a Session to one configured peer address. A concrete
// deployment supplies the actual socket or SOCKS-proxy hop; the core only
// ever depends on netcore.Session and netcore.Codec.
type Dialer interface {
	Dial(ctx context.Context, peer config.PeerAddress) (netcore.Session, error)
}

// Client owns the dispatcher loop, the peer set, and the reconnect
// scheduling around it. It is the facade a deployment builds against
// instead of wiring netcore.Dispatcher and netcore.Connection by hand.
type Client struct {
	cfg    config.Config
	dialer Dialer
	codec  netcore.Codec
	logger *slog.Logger

	kdf        crypto.OwnerKDF
	finalizer  crypto.BlockFinalizer
	loginFlags netcore.LoginFlags
	verifier   verify.Verifier

	dispatcherOpts []netcore.DispatcherOption
	dispatcher     *netcore.Dispatcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets the structured logger passed down to every connection
// and the dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithOwnerKDF installs the owner-key proof/verify collaborator used
// during peer authentication.
func WithOwnerKDF(kdf crypto.OwnerKDF) Option {
	return func(c *Client) { c.kdf = kdf }
}

// WithBlockFinalizer installs the mining co-sign collaborator.
func WithBlockFinalizer(f crypto.BlockFinalizer) Option {
	return func(c *Client) { c.finalizer = f }
}

// WithLoginFlags sets the capability bits this client advertises to peers.
func WithLoginFlags(flags netcore.LoginFlags) Option {
	return func(c *Client) { c.loginFlags = flags }
}

// WithVerifier installs the header-hash and PoW-validation rule every
// connection this Client opens uses for sync and header-pack
// reconstruction. Defaults to netcore.Connection's built-in no-op rule,
// which accepts everything; a real deployment must supply its chain's own
// (e.g. one built on ethheader for an Ethereum-style PoW chain).
func WithVerifier(v verify.Verifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithMetrics installs a metrics.Recorder. Defaults to metrics.NoopRecorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.dispatcherOpts = append(c.dispatcherOpts, netcore.WithMetrics(r))
	}
}

// New builds a Client from cfg, dialing peers through dialer and encoding
// frames with codec, backed by store for verified header persistence.
func New(cfg config.Config, store history.Store, callbacks Callbacks, dialer Dialer, codec netcore.Codec, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		dialer:     dialer,
		codec:      codec,
		logger:     slog.Default(),
		loginFlags: netcore.NewLoginFlags(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.verifier.Hash == nil || c.verifier.Validate == nil {
		c.verifier = verify.Verifier{
			Hash:     func(history.Header) history.Hash { return history.Hash{} },
			Validate: func(history.Header) bool { return true },
		}
	}

	dispatcherOpts := append([]netcore.DispatcherOption{
		netcore.WithDispatcherLogger(c.logger),
		netcore.WithDispatcherConfig(netcore.DispatcherConfig{
			ReconnectTimeoutMS:     cfg.ReconnectTimeoutMS,
			PollPeriodMS:           cfg.PollPeriodMS,
			CloseConnectionDelayMS: cfg.CloseConnectionDelayMS,
			TargetBlockTimeS:       cfg.TargetBlockTimeS,
		}),
		netcore.WithIdleCloseHandler(func(conn *netcore.Connection) {
			_ = conn.Close()
		}),
	}, c.dispatcherOpts...)

	c.dispatcher = netcore.NewDispatcher(store, callbacks, dispatcherOpts...)
	return c
}

// Start dials every configured peer and begins the dispatcher loop. It
// returns once the initial dial attempts have been kicked off; connection
// success or failure is reported asynchronously via Callbacks.
func (c *Client) Start(ctx context.Context) error {
	peers, err := c.cfg.ResolvePeers()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	for _, peer := range peers {
		c.dialAndWatch(ctx, peer)
	}
	return nil
}

func (c *Client) dialAndWatch(ctx context.Context, peer config.PeerAddress) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dialLoop(ctx, peer)
	}()
}

// dialLoop keeps one peer address connected, redialing after every failed
// attempt or dropped connection until ctx is cancelled. The redial waits
// ReconnectTimeoutMS, or the dispatcher's RedialDelay when idle polling is
// enabled (PollPeriodMS > 0).
func (c *Client) dialLoop(ctx context.Context, peer config.PeerAddress) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session, err := c.dialer.Dial(ctx, peer)
		if err != nil {
			c.logger.Warn("dial failed", "peer", peer.Raw, "error", err)
			if !c.sleep(ctx, c.reconnectDelay()) {
				return
			}
			continue
		}

		conn := netcore.NewConnection(uuid.NewString(), session, c.codec,
			netcore.WithLogger(c.logger),
			netcore.WithOwnerKDF(c.kdf),
			netcore.WithBlockFinalizer(c.finalizer),
			netcore.WithLoginFlags(c.loginFlags),
			netcore.WithVerifier(c.verifier),
		)
		c.dispatcher.AddConnection(conn)
		c.dispatcher.Watch(conn)

		select {
		case <-conn.Done():
		case <-ctx.Done():
			_ = conn.Close()
			return
		}

		if !c.sleep(ctx, c.reconnectDelay()) {
			return
		}
	}
}

func (c *Client) reconnectDelay() time.Duration {
	if c.cfg.PollPeriodMS > 0 {
		if d := c.dispatcher.RedialDelay(); d > 0 {
			return d
		}
	}
	return time.Duration(c.cfg.ReconnectTimeoutMS) * time.Millisecond
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop cancels every dial loop and waits for them to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// PostRequest enqueues r against the peer set.
func (c *Client) PostRequest(r *request.Request) { c.dispatcher.PostRequest(r) }

// CancelRequest marks r cancelled.
func (c *Client) CancelRequest(r *request.Request) { c.dispatcher.CancelRequest(r) }

// BbsSubscribe registers interest in a BBS channel and reissues the
// subscription to every currently connected peer.
func (c *Client) BbsSubscribe(key string, sub *netcore.BbsSubscription) {
	c.dispatcher.BbsSubscribe(key, sub)
}

// BbsUnsubscribe removes a channel subscription.
func (c *Client) BbsUnsubscribe(key string) {
	c.dispatcher.Bbs().Unsubscribe(key)
}
