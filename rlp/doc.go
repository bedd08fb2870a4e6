// Package rlp implements the canonical Recursive Length Prefix encoding
// used to build and hash external-chain (Ethereum-style) headers for
// cross-chain proofs. It is not a general-purpose RLP library: it supports
// exactly the node shapes the header hasher needs (lists, byte strings, and
// unsigned integers), plus a streaming sink that feeds an encoded node
// straight into a Keccak sponge without materializing the full encoding.
package rlp
