package netcore

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
)

// boxingCodec is a test-only Codec: rather than actually serializing
// payloads, it boxes them in a process-wide table and hands back the
// lookup key as the "frame" bytes. It exists so connection/sync/dispatcher
// tests can exchange the same typed Go values a real Codec would decode,
// without needing a wire format under test.
type boxingCodec struct{}

var (
	boxCounter uint64
	boxTable   sync.Map // uint64 -> boxedFrame
)

type boxedFrame struct {
	name    string
	payload any
}

func (boxingCodec) Encode(name string, payload any) ([]byte, error) {
	key := atomic.AddUint64(&boxCounter, 1)
	boxTable.Store(key, boxedFrame{name: name, payload: payload})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, key)
	return buf, nil
}

func (boxingCodec) Decode(frame []byte) (string, any, error) {
	key := binary.BigEndian.Uint64(frame)
	v, ok := boxTable.LoadAndDelete(key)
	if !ok {
		return "", nil, io.ErrUnexpectedEOF
	}
	f := v.(boxedFrame)
	return f.name, f.payload, nil
}

// scriptedSession is a test Session backed by a channel of inbound frames
// and a recorded list of outbound ones.
type scriptedSession struct {
	mu   sync.Mutex
	sent [][]byte

	frames    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptedSession() *scriptedSession {
	return &scriptedSession{
		frames: make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (s *scriptedSession) Send(msg []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

func (s *scriptedSession) Recv() ([]byte, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *scriptedSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// push injects a frame the connection's read loop will Recv next.
func (s *scriptedSession) push(frame []byte) {
	select {
	case s.frames <- frame:
	case <-s.closed:
	}
}

func (s *scriptedSession) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// sentNames decodes every outbound frame's message name via codec, in
// send order.
func (s *scriptedSession) sentNames(codec Codec) []string {
	frames := s.Sent()
	names := make([]string, len(frames))
	for i, f := range frames {
		name, _, err := codec.Decode(f)
		if err != nil {
			names[i] = "<undecodable>"
			continue
		}
		names[i] = name
	}
	return names
}
