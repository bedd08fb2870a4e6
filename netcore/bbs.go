package netcore

import "sync"

// BbsSubscription is one channel a caller has asked to be notified about.
type BbsSubscription struct {
	Channel  []byte
	SinceTS  uint64
	Handler  func(msg []byte, ts uint64)
}

// BbsTable is the dispatcher-owned BBS subscription table: the set of
// channels the application wants delivered, and for each subscription the
// timestamp watermark it was last delivered up to, so a fresh or
// reconnecting peer can be asked to replay only what might have been
// missed.
type BbsTable struct {
	mu   sync.Mutex
	subs map[string]*BbsSubscription
}

// NewBbsTable returns an empty subscription table.
func NewBbsTable() *BbsTable {
	return &BbsTable{subs: make(map[string]*BbsSubscription)}
}

// Subscribe registers interest in channel, replacing any existing
// subscription for the same channel key.
func (t *BbsTable) Subscribe(key string, sub *BbsSubscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[key] = sub
}

// Unsubscribe removes a channel subscription.
func (t *BbsTable) Unsubscribe(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, key)
}

// Count reports the number of live subscriptions, for metrics.
func (t *BbsTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// ReissueAll sends a BbsSubscribe for every live subscription on the given
// connection, each carrying the subscription's since watermark. Called on
// Login completion so a reconnecting peer replays messages missed while
// the connection was down.
func (t *BbsTable) ReissueAll(c *Connection) error {
	t.mu.Lock()
	subs := make([]*BbsSubscription, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		if err := c.SendMessage("BbsSubscribe", bbsSubscribeQuery{Channel: s.Channel, Since: s.SinceTS}); err != nil {
			return err
		}
	}
	return nil
}

// ReissueOne sends a BbsSubscribe for a single subscription to every
// connection in peers. Called when a caller subscribes to a new channel
// after peers are already logged in, since ReissueAll only fires on that
// connection's own Login.
func (t *BbsTable) ReissueOne(sub *BbsSubscription, peers []*Connection) {
	for _, c := range peers {
		_ = c.SendMessage("BbsSubscribe", bbsSubscribeQuery{Channel: sub.Channel, Since: sub.SinceTS})
	}
}

// Deliver routes an inbound BbsMsg to its subscription handler, if any,
// and advances that subscription's watermark.
func (t *BbsTable) Deliver(key string, msg []byte, ts uint64) {
	t.mu.Lock()
	sub, ok := t.subs[key]
	t.mu.Unlock()
	if !ok {
		return
	}
	sub.SinceTS = ts
	if sub.Handler != nil {
		sub.Handler(msg, ts)
	}
}

type bbsSubscribeQuery struct {
	Channel []byte
	Since   uint64
}
