package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func h(height Height, prev Hash, work int64) Header {
	var hash Hash
	hash[0] = byte(height)
	hash[1] = byte(height >> 8)
	return Header{Height: height, Prev: prev, Hash: hash, ChainWork: NewChainWork(work)}
}

func TestMemStoreGetTipEmpty(t *testing.T) {
	s := NewMemStore()
	_, ok := s.GetTip()
	require.False(t, ok)
}

func TestMemStoreAddStatesAndGetTip(t *testing.T) {
	s := NewMemStore()
	g := h(1, Hash{}, 10)
	s.AddStates([]Header{g})

	second := h(2, g.Hash, 20)
	s.AddStates([]Header{second})

	tip, ok := s.GetTip()
	require.True(t, ok)
	require.Equal(t, second.Height, tip.Height)
}

func TestMemStoreAddStatesRejectsNonContiguousHeight(t *testing.T) {
	s := NewMemStore()
	s.AddStates([]Header{h(1, Hash{}, 10)})
	require.Panics(t, func() {
		s.AddStates([]Header{h(3, Hash{}, 20)})
	})
}

func TestMemStoreAddStatesRejectsBrokenLink(t *testing.T) {
	s := NewMemStore()
	s.AddStates([]Header{h(1, Hash{}, 10)})
	require.Panics(t, func() {
		s.AddStates([]Header{h(2, Hash{9}, 20)})
	})
}

func TestMemStoreEnumDescendingWithUpperBound(t *testing.T) {
	s := NewMemStore()
	g := h(1, Hash{}, 10)
	second := h(2, g.Hash, 20)
	third := h(3, second.Hash, 30)
	s.AddStates([]Header{g, second, third})

	var seen []Height
	upper := Height(2)
	s.Enum(WalkerFunc(func(hdr Header) bool {
		seen = append(seen, hdr.Height)
		return true
	}), &upper)

	require.Equal(t, []Height{2, 1}, seen)
}

func TestMemStoreDeleteFrom(t *testing.T) {
	s := NewMemStore()
	g := h(1, Hash{}, 10)
	second := h(2, g.Hash, 20)
	s.AddStates([]Header{g, second})

	s.DeleteFrom(2)
	tip, ok := s.GetTip()
	require.True(t, ok)
	require.Equal(t, Height(1), tip.Height)
}

func TestHeaderIsNextAndEqual(t *testing.T) {
	g := h(1, Hash{}, 10)
	second := h(2, g.Hash, 20)
	require.True(t, second.IsNext(g))
	require.False(t, g.IsNext(second))
	require.True(t, second.Equal(h(2, g.Hash, 20)))
}

func TestChainWorkCmpAndAdd(t *testing.T) {
	a := NewChainWork(10)
	b := a.Add(5)
	require.Equal(t, 0, a.Cmp(NewChainWork(10)))
	require.Equal(t, 1, b.Cmp(a))

	var zero ChainWork
	require.Equal(t, 0, zero.Cmp(NewChainWork(0)))
}
