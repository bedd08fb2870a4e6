package history

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory Store, used by tests and by short-lived tooling
// that has no durable backing. Headers are kept sorted by height ascending.
type MemStore struct {
	mu      sync.Mutex
	headers []Header
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// GetTip implements Store.
func (m *MemStore) GetTip() (Header, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.headers) == 0 {
		return Header{}, false
	}
	return m.headers[len(m.headers)-1], true
}

// Enum implements Store.
func (m *MemStore) Enum(walker Walker, upperBound *Height) {
	m.mu.Lock()
	headers := make([]Header, len(m.headers))
	copy(headers, m.headers)
	m.mu.Unlock()

	for i := len(headers) - 1; i >= 0; i-- {
		h := headers[i]
		if upperBound != nil && h.Height > *upperBound {
			continue
		}
		if !walker.OnState(h) {
			return
		}
	}
}

// AddStates implements Store. It panics on a monotonicity violation: this
// is a class-3 programmer error per the error handling design, not a
// recoverable condition.
func (m *MemStore) AddStates(headers []Header) {
	if len(headers) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, hasPrev := Header{}, false
	if len(m.headers) > 0 {
		prev = m.headers[len(m.headers)-1]
		hasPrev = true
	}
	for _, h := range headers {
		if hasPrev {
			if h.Height != prev.Height+1 {
				panic(fmt.Sprintf("history: non-contiguous append at height %d after %d", h.Height, prev.Height))
			}
			if h.Prev != prev.Hash {
				panic(fmt.Sprintf("history: header at height %d does not link to predecessor", h.Height))
			}
			if h.ChainWork.Cmp(prev.ChainWork) <= 0 {
				panic(fmt.Sprintf("history: chainwork did not increase at height %d", h.Height))
			}
		}
		prev, hasPrev = h, true
	}
	m.headers = append(m.headers, headers...)
}

// DeleteFrom implements Store.
func (m *MemStore) DeleteFrom(from Height) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := sort.Search(len(m.headers), func(i int) bool {
		return m.headers[i].Height >= from
	})
	m.headers = m.headers[:idx]
}
