package rlp

import (
	"hash"
)

// flushBufferSize is the accumulation size before HashSink feeds the
// underlying sponge directly. An Ethereum-style header encoding is larger
// than this (its 256-byte bloom alone), so hashing one takes several
// flushes.
const flushBufferSize = 128

// HashSink is a Writer that accumulates bytes into a fixed buffer and
// flushes into a hash.Hash once the buffer fills, so that encoding a node
// straight into a header hash never materializes the full encoding.
type HashSink struct {
	h   hash.Hash
	buf [flushBufferSize]byte
	n   int
}

// NewHashSink wraps h (typically a Keccak sponge from golang.org/x/crypto/sha3)
// as an RLP write target.
func NewHashSink(h hash.Hash) *HashSink {
	return &HashSink{h: h}
}

// Write implements io.Writer. It never returns an error.
func (s *HashSink) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		if s.n == 0 && len(p) >= flushBufferSize {
			s.h.Write(p[:flushBufferSize])
			p = p[flushBufferSize:]
			continue
		}
		room := flushBufferSize - s.n
		copyLen := room
		if copyLen > len(p) {
			copyLen = len(p)
		}
		copy(s.buf[s.n:], p[:copyLen])
		s.n += copyLen
		p = p[copyLen:]
		if s.n == flushBufferSize {
			s.flush()
		}
	}
	return total, nil
}

func (s *HashSink) flush() {
	if s.n == 0 {
		return
	}
	s.h.Write(s.buf[:s.n])
	s.n = 0
}

// EncodeInto streams the canonical encoding of n into the sink without ever
// allocating the full encoded byte slice.
func EncodeInto(sink *HashSink, n Node) {
	writeStreaming(sink, n)
}

func writeStreaming(sink *HashSink, n Node) {
	switch v := n.(type) {
	case *ByteString:
		writeByteStringStreaming(sink, v.Data)
	case *Integer:
		writeByteStringStreaming(sink, v.minimalBytes())
	case *List:
		s := v.payloadSize()
		if s < 56 {
			sink.Write([]byte{byte(0xc0 + s)})
		} else {
			lb := lenBytesCount(uint64(s))
			header := make([]byte, 1+lb)
			header[0] = byte(0xf7 + lb)
			appendBigEndianInto(header[1:], uint64(s), lb)
			sink.Write(header)
		}
		for _, c := range v.Children {
			writeStreaming(sink, c)
		}
	}
}

func writeByteStringStreaming(sink *HashSink, data []byte) {
	n := len(data)
	if n == 1 && data[0] < 0x80 {
		sink.Write(data)
		return
	}
	if n < 56 {
		sink.Write([]byte{byte(0x80 + n)})
		sink.Write(data)
		return
	}
	lb := lenBytesCount(uint64(n))
	header := make([]byte, 1+lb)
	header[0] = byte(0xb7 + lb)
	appendBigEndianInto(header[1:], uint64(n), lb)
	sink.Write(header)
	sink.Write(data)
}

// Sum finalizes the sink, returning the underlying hash's digest.
func (s *HashSink) Sum(b []byte) []byte {
	s.flush()
	return s.h.Sum(b)
}
