// Package ethheader hashes external-chain (Ethereum-style) block headers
// the way the chain itself does, so that a header handed over by a peer can
// be checked against its claimed proof-of-work without this module linking
// an execution client.
package ethheader

import (
	"golang.org/x/crypto/sha3"

	"github.com/beamlight/flyclient/rlp"
)

// Header is an Ethereum-style (pre-merge, ethash) block header: the 13
// fields common to every block, plus the two PoW-only fields that are
// present on a mined header and absent from the header a miner hashes to
// find a seed for the PoW search.
type Header struct {
	ParentHash   [32]byte
	UncleHash    [32]byte
	Coinbase     [20]byte
	StateRoot    [32]byte
	TxRoot       [32]byte
	ReceiptRoot  [32]byte
	Bloom        [256]byte
	Difficulty   uint64
	Number       uint64
	GasLimit     uint64
	GasUsed      uint64
	Timestamp    uint64
	ExtraData    []byte

	// HasPoWFields reports whether MixHash and Nonce are populated. A
	// mined header carries both; the pre-PoW form used to compute the
	// seed hash omits them.
	HasPoWFields bool
	MixHash      [32]byte
	Nonce        [8]byte
}

func (h *Header) baseFields() []rlp.Node {
	return []rlp.Node{
		rlp.NewByteString(h.ParentHash[:]),
		rlp.NewByteString(h.UncleHash[:]),
		rlp.NewByteString(h.Coinbase[:]),
		rlp.NewByteString(h.StateRoot[:]),
		rlp.NewByteString(h.TxRoot[:]),
		rlp.NewByteString(h.ReceiptRoot[:]),
		rlp.NewByteString(h.Bloom[:]),
		rlp.NewInteger(h.Difficulty),
		rlp.NewInteger(h.Number),
		rlp.NewInteger(h.GasLimit),
		rlp.NewInteger(h.GasUsed),
		rlp.NewInteger(h.Timestamp),
		rlp.NewByteString(h.ExtraData),
	}
}

// asList builds the RLP list node for the header. withPoW forces inclusion
// (or exclusion) of MixHash/Nonce regardless of h.HasPoWFields, since
// SeedHash always hashes the header without them even for a fully mined
// header.
func (h *Header) asList(withPoW bool) *rlp.List {
	fields := h.baseFields()
	if withPoW {
		fields = append(fields, rlp.NewByteString(h.MixHash[:]), rlp.NewByteString(h.Nonce[:]))
	}
	return rlp.NewList(fields...)
}

// Hash returns the Keccak-256 hash of the header's canonical RLP encoding,
// including MixHash and Nonce when HasPoWFields is set.
func (h *Header) Hash() [32]byte {
	sink := rlp.NewHashSink(sha3.NewLegacyKeccak256())
	rlp.EncodeInto(sink, h.asList(h.HasPoWFields))
	var out [32]byte
	copy(out[:], sink.Sum(nil))
	return out
}

// SeedHash returns the ethash seed hash for the header: the Keccak-512 of
// the Keccak-256 hash of the header without MixHash/Nonce, concatenated
// with the nonce as 8 little-endian bytes.
func (h *Header) SeedHash() [64]byte {
	noPoWSink := rlp.NewHashSink(sha3.NewLegacyKeccak256())
	rlp.EncodeInto(noPoWSink, h.asList(false))
	var headerHash [32]byte
	copy(headerHash[:], noPoWSink.Sum(nil))

	nonceLE := [8]byte{
		h.Nonce[7], h.Nonce[6], h.Nonce[5], h.Nonce[4],
		h.Nonce[3], h.Nonce[2], h.Nonce[1], h.Nonce[0],
	}

	seed := sha3.NewLegacyKeccak512()
	seed.Write(headerHash[:])
	seed.Write(nonceLE[:])
	var out [64]byte
	copy(out[:], seed.Sum(nil))
	return out
}

// epochLength is the number of blocks per ethash epoch.
const epochLength = 30000

// Epoch returns the ethash epoch this header's DAG belongs to.
func (h *Header) Epoch() uint64 {
	return h.Number / epochLength
}
