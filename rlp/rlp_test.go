package rlp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeByteStringVectors(t *testing.T) {
	require.Equal(t, []byte{0x82, 0x04, 0x00}, Encode(NewByteString([]byte{0x04, 0x00})))
	require.Equal(t, []byte{0x7f}, Encode(NewByteString([]byte{0x7f})))
	require.Equal(t, []byte{0x80}, Encode(NewByteString(nil)))
	require.Equal(t, []byte{0x81, 0x80}, Encode(NewByteString([]byte{0x80})))
}

func TestEncodeListVectors(t *testing.T) {
	require.Equal(t, []byte{0xc0}, Encode(NewList()))

	dog := NewByteString([]byte("dog"))
	require.Equal(t, []byte{0xc4, 0x83, 0x64, 0x6f, 0x67}, Encode(NewList(dog)))
}

func TestEncodeIntegerVectors(t *testing.T) {
	require.Equal(t, []byte{0x80}, Encode(NewInteger(0)))
	require.Equal(t, []byte{0x01}, Encode(NewInteger(1)))
	require.Equal(t, []byte{0x81, 0x80}, Encode(NewInteger(128)))
}

func TestEncodeLongByteString(t *testing.T) {
	data := make([]byte, 56)
	for i := range data {
		data[i] = byte(i)
	}
	out := Encode(NewByteString(data))
	require.Equal(t, byte(0xb8), out[0])
	require.Equal(t, byte(56), out[1])
	require.Equal(t, data, out[2:])
}

func TestEncodeLongList(t *testing.T) {
	children := make([]Node, 0, 20)
	for i := 0; i < 20; i++ {
		children = append(children, NewByteString([]byte{0x10, 0x20, 0x30}))
	}
	l := NewList(children...)
	out := Encode(l)
	require.Equal(t, byte(0xf8), out[0])
	require.Equal(t, l.payloadSize(), int(out[1]))
}

func TestDecodeRoundTripsEncode(t *testing.T) {
	l := NewList(
		NewByteString([]byte("dog")),
		NewList(NewInteger(1), NewInteger(300)),
		NewByteString(nil),
	)
	encoded := Encode(l)

	var elements []Element
	n, ok := Decode(encoded, len(encoded), VisitorFunc(func(e Element) bool {
		elements = append(elements, e)
		return true
	}))
	require.True(t, ok)
	require.Equal(t, len(encoded), n)
	require.NotEmpty(t, elements)
	require.Equal(t, KindList, elements[0].Kind)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	_, ok := Decode([]byte{0x83, 0x01, 0x02}, 3, VisitorFunc(func(Element) bool { return true }))
	require.False(t, ok)
}

func TestDecodeRejectsOverlongLengthField(t *testing.T) {
	buf := []byte{0xb8, 0xff, 0x01}
	_, ok := Decode(buf, len(buf), VisitorFunc(func(Element) bool { return true }))
	require.False(t, ok)
}

func TestHashSinkMatchesEncode(t *testing.T) {
	l := NewList(NewByteString([]byte("dog")), NewInteger(300))
	direct := Encode(l)

	var collected []byte
	// HashSink writes into a hash.Hash; use a trivial accumulating fake to
	// confirm it observes the same bytes writeTo would produce.
	fakeSink := NewHashSink(&collectHash{&collected})
	EncodeInto(fakeSink, l)
	fakeSink.Sum(nil)
	require.Equal(t, direct, collected)
}

type collectHash struct {
	buf *[]byte
}

func (c *collectHash) Write(p []byte) (int, error) {
	*c.buf = append(*c.buf, p...)
	return len(p), nil
}
func (c *collectHash) Sum(b []byte) []byte { return append(b, *c.buf...) }
func (c *collectHash) Reset()              { *c.buf = nil }
func (c *collectHash) Size() int           { return len(*c.buf) }
func (c *collectHash) BlockSize() int      { return 1 }
