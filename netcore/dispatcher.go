package netcore

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/metrics"
	"github.com/beamlight/flyclient/request"
)

// DispatcherConfig carries the timing knobs from the External Interfaces
// config surface that the dispatcher itself consumes.
type DispatcherConfig struct {
	ReconnectTimeoutMS     uint32
	PollPeriodMS           uint32
	CloseConnectionDelayMS uint32
	TargetBlockTimeS       uint32
}

// Dispatcher owns the History Store, the BBS subscription table, the peer
// set, and the global FIFO request queue. There is no single event loop:
// its methods run on each connection's read goroutine (through
// HandleFrame), on the goroutines Watch starts, and on idle-close timers.
// mu guards the peer list, the global queue, and the close timers.
type Dispatcher struct {
	mu sync.Mutex

	cfg       DispatcherConfig
	store     history.Store
	callbacks Callbacks
	metrics   metrics.Recorder
	logger    *slog.Logger

	// peers is ordered by "stickiness": index 0 is the connection that
	// most recently completed a successful sync, per §4.5's tie-break.
	peers []*Connection

	globalQueue []*request.Request

	closeTimers map[string]*time.Timer
	onIdleClose func(*Connection)

	bbs *BbsTable

	reportedConnected bool
}

// Bbs returns the dispatcher's BBS subscription table, the handle a caller
// uses to Subscribe/Unsubscribe channels ahead of posting BbsMsg requests.
func (d *Dispatcher) Bbs() *BbsTable { return d.bbs }

// BbsSubscribe registers sub under key and immediately reissues it to
// every currently connected peer, so a channel subscribed after peers have
// already logged in is not left waiting for their next reconnect.
func (d *Dispatcher) BbsSubscribe(key string, sub *BbsSubscription) {
	d.bbs.Subscribe(key, sub)
	d.mu.Lock()
	peers := append([]*Connection(nil), d.peers...)
	d.mu.Unlock()
	d.bbs.ReissueOne(sub, peers)
}

// DispatcherOption configures a Dispatcher at construction time.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the dispatcher's structured logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics installs a metrics.Recorder. Defaults to metrics.NoopRecorder.
func WithMetrics(r metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = r }
}

// WithDispatcherConfig sets the reconnect/poll/close timing knobs.
func WithDispatcherConfig(cfg DispatcherConfig) DispatcherOption {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// WithIdleCloseHandler installs the hook fired when a connection's
// idle-close timer expires. The dispatcher itself does not own reconnect
// scheduling; the hook is expected to close the connection and, per
// §4.6's idle-poll rule, schedule a redial at
// max(target_block_time, poll_period_ms).
func WithIdleCloseHandler(f func(*Connection)) DispatcherOption {
	return func(d *Dispatcher) { d.onIdleClose = f }
}

// NewDispatcher builds a Dispatcher bound to store, invoking callbacks for
// application-visible events.
func NewDispatcher(store history.Store, callbacks Callbacks, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		callbacks:   callbacks,
		metrics:     metrics.NoopRecorder{},
		logger:      slog.Default(),
		closeTimers: make(map[string]*time.Timer),
		bbs:         NewBbsTable(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddConnection admits a newly live connection at the back of the peer
// list (least sticky) and notifies the application if this is the first
// live connection.
func (d *Dispatcher) AddConnection(c *Connection) {
	c.setLocalTipProvider(d.store.GetTip)

	d.mu.Lock()
	d.peers = append(d.peers, c)
	first := len(d.peers) == 1
	d.mu.Unlock()

	d.metrics.ConnectionOpened()
	if first {
		d.reportedConnected = true
		d.callbacks.OnNodeConnected(true)
	}
}

// Watch starts c's read loop routed through this dispatcher's HandleFrame,
// and spawns the goroutine that tears the connection out of the peer set
// once its read loop exits, reporting a transport failure if that is why
// it exited.
func (d *Dispatcher) Watch(c *Connection) {
	c.Start(d.HandleFrame)
	c.OnConnectedSecure()
	go func() {
		select {
		case err := <-c.Errors():
			var transportErr *TransportError
			if errors.As(err, &transportErr) {
				d.callbacks.OnConnectionFailed(c.ID(), err)
			} else {
				d.logger.Warn("connection torn down", "connection_id", c.ID(), "error", err)
			}
		case <-c.Done():
		}
		d.RemoveConnection(c)
	}()
}

// RemoveConnection tears a connection out of the peer set, moving its
// in-flight requests back onto the global queue in their original order,
// and reassigns them to whatever peers remain.
func (d *Dispatcher) RemoveConnection(c *Connection) {
	d.mu.Lock()
	for i, p := range d.peers {
		if p == c {
			d.peers = append(d.peers[:i], d.peers[i+1:]...)
			break
		}
	}
	c.mu.Lock()
	wasOwned := c.flags.Owned()
	requeued := c.inFlight
	c.inFlight = nil
	c.mu.Unlock()

	d.globalQueue = append(requeued, d.globalQueue...)
	empty := len(d.peers) == 0
	d.mu.Unlock()

	d.killCloseTimer(c.ID())
	d.metrics.ConnectionClosed()

	if wasOwned {
		d.callbacks.OnOwnedNode(c.ID(), false)
	}
	if empty && d.reportedConnected {
		d.reportedConnected = false
		d.callbacks.OnNodeConnected(false)
	}
	d.AssignRequests()
}

// PostRequest enqueues r at the back of the global queue and immediately
// attempts assignment.
func (d *Dispatcher) PostRequest(r *request.Request) {
	d.mu.Lock()
	d.globalQueue = append(d.globalQueue, r)
	d.mu.Unlock()
	d.AssignRequests()
}

// CancelRequest marks r cancelled; it is dropped the next time it would
// otherwise be walked, whether still pending or already in flight.
func (d *Dispatcher) CancelRequest(r *request.Request) {
	r.Cancel()
}

// AssignRequests walks the global queue once per live connection,
// assigning every request the connection currently supports.
func (d *Dispatcher) AssignRequests() {
	d.mu.Lock()
	peers := append([]*Connection(nil), d.peers...)
	d.mu.Unlock()

	for _, c := range peers {
		d.assignToConnection(c)
	}
}

func (d *Dispatcher) assignToConnection(c *Connection) {
	c.mu.Lock()
	assignable := c.flags.Live() && c.flags.SecureOut()
	c.mu.Unlock()
	if !assignable {
		return
	}

	d.mu.Lock()
	var remaining []*request.Request
	var toSend []*request.Request
	for _, r := range d.globalQueue {
		if r.Cancelled() {
			continue
		}
		if request.Supports(r.Type, c) {
			toSend = append(toSend, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	d.globalQueue = remaining
	d.metrics.PendingQueueDepth(len(d.globalQueue))
	d.mu.Unlock()

	for _, r := range toSend {
		entry, ok := request.Lookup(r.Type)
		if !ok {
			continue
		}
		if err := entry.Send(c, c, r); err != nil {
			c.protocolViolation("send failed for " + r.Type.String() + ": " + err.Error())
			return
		}
		r.SetStatus(request.StatusActive)
		c.mu.Lock()
		c.inFlight = append(c.inFlight, r)
		c.mu.Unlock()
	}

	d.armOrDisarmIdleTimer(c)
}

// HandleResponse matches an inbound reply against the connection's
// in-flight front entry, validates it, and either finishes it or, if the
// connection's support for the request degraded between send and
// response, requeues it globally and reassigns immediately.
func (d *Dispatcher) HandleResponse(c *Connection, msg any) error {
	c.mu.Lock()
	if len(c.inFlight) == 0 {
		c.mu.Unlock()
		c.protocolViolation("response with no in-flight request")
		return errNoInFlight
	}
	r := c.inFlight[0]
	c.mu.Unlock()

	entry, ok := request.Lookup(r.Type)
	if !ok {
		c.protocolViolation("response for unregistered request type")
		return errNoInFlight
	}
	if err := entry.Validate(r, msg, c); err != nil {
		c.protocolViolation(err.Error())
		return err
	}

	c.mu.Lock()
	c.inFlight = c.inFlight[1:]
	c.mu.Unlock()

	d.onFirstRequestDone(c, r, request.Supports(r.Type, c))
	return nil
}

// HandleDataMissing implements the DataMissing special case: valid only
// for EnumHeaders and BodyPack, where it means "completed empty"; any
// other in-flight type receiving it is a protocol violation.
func (d *Dispatcher) HandleDataMissing(c *Connection) error {
	c.mu.Lock()
	if len(c.inFlight) == 0 {
		c.mu.Unlock()
		c.protocolViolation("DataMissing with no in-flight request")
		return errNoInFlight
	}
	r := c.inFlight[0]
	typ := r.Type
	c.mu.Unlock()

	if typ != request.EnumHeaders && typ != request.BodyPack {
		c.protocolViolation("DataMissing for unsupported request type " + typ.String())
		return errNoInFlight
	}

	c.mu.Lock()
	c.inFlight = c.inFlight[1:]
	c.mu.Unlock()

	r.Finish(true)
	d.armOrDisarmIdleTimer(c)
	d.AssignRequests()
	return nil
}

// onFirstRequestDone implements the retry-on-degradation contract: a
// response that arrives once support has degraded goes back to the global
// queue and AssignRequests runs immediately, rather than waiting for the
// next tip change. A request cancelled while in flight still completes the
// wire round-trip here, but is dropped rather than finished or requeued:
// the caller that cancelled it is no longer waiting on its callback.
func (d *Dispatcher) onFirstRequestDone(c *Connection, r *request.Request, stillSupported bool) {
	if r.Cancelled() {
		d.AssignRequests()
		return
	}
	if !stillSupported {
		r.SetStatus(request.StatusPending)
		d.mu.Lock()
		d.globalQueue = append([]*request.Request{r}, d.globalQueue...)
		d.mu.Unlock()
		d.AssignRequests()
		return
	}
	r.Finish(true)
	d.AssignRequests()
}

func (d *Dispatcher) armOrDisarmIdleTimer(c *Connection) {
	c.mu.Lock()
	idle := len(c.inFlight) == 0
	c.mu.Unlock()

	if idle && d.cfg.PollPeriodMS > 0 {
		d.armCloseTimer(c)
	} else {
		d.killCloseTimer(c.ID())
	}
}

func (d *Dispatcher) armCloseTimer(c *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.closeTimers[c.ID()]; exists {
		return
	}
	delay := time.Duration(d.cfg.CloseConnectionDelayMS) * time.Millisecond
	d.closeTimers[c.ID()] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.closeTimers, c.ID())
		d.mu.Unlock()
		if d.onIdleClose != nil {
			d.onIdleClose(c)
		}
	})
}

func (d *Dispatcher) killCloseTimer(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.closeTimers[connectionID]; ok {
		t.Stop()
		delete(d.closeTimers, connectionID)
	}
}

// RedialDelay is max(target_block_time, poll_period_ms), the floor an
// idle-poll reconnect waits before redialing, per §4.6.
func (d *Dispatcher) RedialDelay() time.Duration {
	targetMS := time.Duration(d.cfg.TargetBlockTimeS) * time.Second
	pollMS := time.Duration(d.cfg.PollPeriodMS) * time.Millisecond
	if targetMS > pollMS {
		return targetMS
	}
	return pollMS
}

// promoteToFront hoists c to the head of the peer list: the "stickiness"
// tie-break that lets the connection which most recently proved a common
// ancestor win contention for future syncs.
func (d *Dispatcher) promoteToFront(c *Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.peers {
		if p == c {
			d.peers = append(d.peers[:i], d.peers[i+1:]...)
			d.peers = append([]*Connection{c}, d.peers...)
			return
		}
	}
}

// lowerSyncFloors lowers every other syncing connection's low_height to
// newFloor - 1 so they re-bisect against a rollback discovered elsewhere,
// per §4.5 step 6.
func (d *Dispatcher) lowerSyncFloors(except *Connection, newFloor history.Height) {
	d.mu.Lock()
	peers := append([]*Connection(nil), d.peers...)
	d.mu.Unlock()

	for _, c := range peers {
		if c == except {
			continue
		}
		c.mu.Lock()
		if c.sync != nil && newFloor > 0 && c.sync.LowHeight > newFloor-1 {
			c.sync.LowHeight = newFloor - 1
		}
		c.mu.Unlock()
	}
}
