package rlp

// Node is a value in the RLP node tree: a List, a ByteString, or an
// Integer. Encode works through this interface; the streaming EncodeInto
// switches on the three concrete types.
type Node interface {
	// size returns the brutto (header-included) encoded length, computing
	// it on first call and caching the result.
	size() int
	// writeTo appends the canonical encoding of the node to dst and
	// returns the extended slice.
	writeTo(dst []byte) []byte
}

// ByteString is a leaf node wrapping raw bytes.
type ByteString struct {
	Data []byte

	cached    bool
	cacheSize int
}

// NewByteString wraps b as an RLP byte string node.
func NewByteString(b []byte) *ByteString {
	return &ByteString{Data: b}
}

func (b *ByteString) size() int {
	if !b.cached {
		b.cacheSize = byteStringSize(b.Data)
		b.cached = true
	}
	return b.cacheSize
}

func byteStringSize(data []byte) int {
	n := len(data)
	if n == 1 && data[0] < 0x80 {
		return 1
	}
	if n < 56 {
		return 1 + n
	}
	return 1 + lenBytesCount(uint64(n)) + n
}

func (b *ByteString) writeTo(dst []byte) []byte {
	n := len(b.Data)
	if n == 1 && b.Data[0] < 0x80 {
		return append(dst, b.Data[0])
	}
	if n < 56 {
		dst = append(dst, byte(0x80+n))
		return append(dst, b.Data...)
	}
	lb := lenBytesCount(uint64(n))
	dst = append(dst, byte(0xb7+lb))
	dst = appendBigEndian(dst, uint64(n), lb)
	return append(dst, b.Data...)
}

// Integer is a leaf node wrapping an unsigned integer, encoded as the
// minimal big-endian byte string representing it (the empty string for
// zero).
type Integer struct {
	Value uint64

	cached    bool
	cacheSize int
}

// NewInteger wraps v as an RLP integer node.
func NewInteger(v uint64) *Integer {
	return &Integer{Value: v}
}

func (i *Integer) minimalBytes() []byte {
	if i.Value == 0 {
		return nil
	}
	n := lenBytesCount(i.Value)
	buf := make([]byte, n)
	appendBigEndianInto(buf, i.Value, n)
	return buf
}

func (i *Integer) size() int {
	if !i.cached {
		i.cacheSize = byteStringSize(i.minimalBytes())
		i.cached = true
	}
	return i.cacheSize
}

func (i *Integer) writeTo(dst []byte) []byte {
	b := i.minimalBytes()
	bs := ByteString{Data: b}
	return bs.writeTo(dst)
}

// List is an ordered sequence of child nodes.
type List struct {
	Children []Node

	cached    bool
	cacheSize int
}

// NewList wraps children as an RLP list node.
func NewList(children ...Node) *List {
	return &List{Children: children}
}

// payloadSize sums the encoded size of every child exactly once, relying on
// each child's own cached size rather than re-walking the tree on repeat
// calls.
func (l *List) payloadSize() int {
	s := 0
	for _, c := range l.Children {
		s += c.size()
	}
	return s
}

func (l *List) size() int {
	if !l.cached {
		s := l.payloadSize()
		if s < 56 {
			l.cacheSize = 1 + s
		} else {
			l.cacheSize = 1 + lenBytesCount(uint64(s)) + s
		}
		l.cached = true
	}
	return l.cacheSize
}

func (l *List) writeTo(dst []byte) []byte {
	s := l.payloadSize()
	if s < 56 {
		dst = append(dst, byte(0xc0+s))
	} else {
		lb := lenBytesCount(uint64(s))
		dst = append(dst, byte(0xf7+lb))
		dst = appendBigEndian(dst, uint64(s), lb)
	}
	for _, c := range l.Children {
		dst = c.writeTo(dst)
	}
	return dst
}

// lenBytesCount is the number of non-zero leading bytes needed to represent
// n in big-endian form (0 for n == 0).
func lenBytesCount(n uint64) int {
	count := 0
	for n > 0 {
		count++
		n >>= 8
	}
	return count
}

func appendBigEndian(dst []byte, n uint64, width int) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, width)...)
	appendBigEndianInto(dst[start:], n, width)
	return dst
}

func appendBigEndianInto(dst []byte, n uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		dst[i] = byte(n)
		n >>= 8
	}
}

// Encode returns the canonical RLP encoding of n.
func Encode(n Node) []byte {
	return n.writeTo(make([]byte, 0, n.size()))
}
