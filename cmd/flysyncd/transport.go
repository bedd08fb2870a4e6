package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/beamlight/flyclient/config"
	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/netcore"
	"github.com/beamlight/flyclient/request"
)

// tcpDialer opens a plain TCP connection to a configured peer. It carries
// no encryption or authentication of its own: those are exactly the
// "encrypted session transport" concerns the sync core places out of
// scope, left here as the minimal concrete binding a daemon needs to
// actually run.
type tcpDialer struct {
	logger *slog.Logger
}

func (d *tcpDialer) Dial(ctx context.Context, peer config.PeerAddress) (netcore.Session, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(peer.Host, peer.Port))
	if err != nil {
		return nil, fmt.Errorf("flysyncd: dial %s: %w", peer.Raw, err)
	}
	return &tcpSession{conn: conn}, nil
}

// tcpSession frames each message with a 4-byte big-endian length prefix.
type tcpSession struct {
	mu   sync.Mutex
	conn net.Conn
}

func (s *tcpSession) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := s.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := s.conn.Write(msg)
	return err
}

func (s *tcpSession) Recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *tcpSession) Close() error { return s.conn.Close() }

// gobFrame is the wire envelope a gobCodec encodes: a message name plus
// its concrete, gob-registered payload.
type gobFrame struct {
	Name    string
	Payload any
}

type gobCodec struct{}

func newGobCodec() netcore.Codec { return gobCodec{} }

func (gobCodec) Encode(name string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobFrame{Name: name, Payload: payload}); err != nil {
		return nil, fmt.Errorf("flysyncd: encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(frame []byte) (string, any, error) {
	var f gobFrame
	if err := gob.NewDecoder(bytes.NewReader(frame)).Decode(&f); err != nil {
		return "", nil, fmt.Errorf("flysyncd: decode frame: %w", err)
	}
	return f.Name, f.Payload, nil
}

func init() {
	gob.Register(netcore.LoginMsg{})
	gob.Register(netcore.AuthenticationMsg{})
	gob.Register(netcore.GetBlockFinalizationMsg{})
	gob.Register(netcore.BlockFinalizationMsg{})
	gob.Register(history.Header{})
	gob.Register(netcore.ProofCommonState{})
	gob.Register(netcore.GetCommonStateQuery{})
	gob.Register(netcore.ProofChainWork{})
	gob.Register(netcore.GetProofChainWorkQuery{})
	gob.Register(netcore.EventsSerifMsg{})
	gob.Register(netcore.PeerInfoMsg{})
	gob.Register(netcore.BbsMsgFrame{})
	gob.Register(netcore.PingMsg{})

	gob.Register(request.UtxoQuery{})
	gob.Register(request.UtxoResult{})
	gob.Register(request.KernelQuery{})
	gob.Register(request.KernelResult{})
	gob.Register(request.KernelByIDQuery{})
	gob.Register(request.KernelByIDResult{})
	gob.Register(request.AssetQuery{})
	gob.Register(request.AssetResult{})
	gob.Register(request.EventsQuery{})
	gob.Register(request.EventsResult{})
	gob.Register(request.TransactionQuery{})
	gob.Register(request.TransactionResult{})
	gob.Register(request.ShieldedListQuery{})
	gob.Register(request.ShieldedListResult{})
	gob.Register(request.ProofShieldedInputQuery{})
	gob.Register(request.ProofShieldedInputResult{})
	gob.Register(request.ProofShieldedOutputQuery{})
	gob.Register(request.ProofShieldedOutputResult{})
	gob.Register(request.StateSummaryQuery{})
	gob.Register(request.StateSummaryResult{})
	gob.Register(request.EnumHeadersQuery{})
	gob.Register(request.EnumHeadersResult{})
	gob.Register(request.ContractVarsQuery{})
	gob.Register(request.ContractVarsResult{})
	gob.Register(request.ContractVarQuery{})
	gob.Register(request.ContractVarResult{})
	gob.Register(request.ContractLogsQuery{})
	gob.Register(request.ContractLogsResult{})
	gob.Register(request.ContractLogProofQuery{})
	gob.Register(request.ContractLogProofResult{})
	gob.Register(request.ShieldedOutputsAtQuery{})
	gob.Register(request.ShieldedOutputsAtResult{})
	gob.Register(request.BodyPackQuery{})
	gob.Register(request.BodyPackResult{})
	gob.Register(request.BodyQuery{})
	gob.Register(request.BodyResult{})
	gob.Register(request.BbsMsgQuery{})
	gob.Register(request.BbsMsgResult{})
}
