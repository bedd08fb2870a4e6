package verify

import "github.com/beamlight/flyclient/history"

// Element is one wire-format entry in a HdrPack response: the fields that
// vary block-to-block, layered onto a shared Prefix by Pack.
type Element struct {
	Difficulty uint64
	Extra      []byte
}

// Prefix carries the fields shared by every header in a pack: the first
// header's height, chainwork, and prev-hash, plus whatever extra data is
// common to the whole pack.
type Prefix struct {
	Height    history.Height
	ChainWork history.ChainWork
	Prev      history.Hash
	Extra     []byte
}

// Verifier bundles the two chain-specific commitments header-pack
// reconstruction needs: Hash computes a header's own commitment hash (the
// link the next header's Prev chains onto), and Validate reports whether a
// header's proof of work is genuine. Both differ per deployment (an
// ethheader.Header's Keccak hash-chain and ethash PoW rule are one choice
// among many), so a Verifier is built once per Client and threaded down to
// every seam that reconstructs or checks a header, rather than resolved
// through mutable package state — two Clients in one process can each run
// their own PoW/hash rule this way.
type Verifier struct {
	Hash     func(history.Header) history.Hash
	Validate func(history.Header) bool
}

// Pack reconstructs the explicit header sequence for a HdrPack response
// and verifies every header's proof of work. elements is in wire order:
// tip-first, i.e. elements[0] is the highest header and the last element
// is the lowest one, at Prefix.Height. Prefix.Height and Prefix.ChainWork are
// the lowest reconstructed header's own height and cumulative chainwork,
// not the header below it: the lowest header takes the last element (the
// one nearest the prefix in wire order), and every element above it adds
// its own difficulty onto the previous header's chainwork.
//
// A single PoW failure taints the whole pack: Pack returns ok == false and
// a nil slice rather than a partially-verified result.
func (v Verifier) Pack(prefix Prefix, elements []Element, scheduler Scheduler) ([]history.Header, bool) {
	if len(elements) == 0 {
		return nil, true
	}

	headers := make([]history.Header, len(elements))

	// elements is tip-first; reconstruct ascending, pairing the lowest
	// height with the last element and the highest with the first.
	prev := prefix.Prev
	height := prefix.Height
	work := prefix.ChainWork
	for i := 0; i < len(elements); i++ {
		e := elements[len(elements)-1-i]
		h := history.Header{
			Height:     height,
			Prev:       prev,
			Difficulty: e.Difficulty,
			Extra:      e.Extra,
		}
		if i == 0 {
			h.ChainWork = work
		} else {
			h.ChainWork = work.Add(e.Difficulty)
		}
		h.Hash = v.Hash(h)

		headers[i] = h

		prev = h.Hash
		height++
		work = h.ChainWork
	}

	if scheduler == nil {
		scheduler = ErrgroupScheduler{}
	}
	ok := scheduler.Run(len(headers), func(i int) bool {
		return v.Validate(headers[i])
	})
	if !ok {
		return nil, false
	}
	return headers, true
}
