// Package flyclient is the light-client sync and request-multiplexing
// core: it maintains a verified header chain against a set of untrusted
// peers via bisection proofs, and multiplexes application-level requests
// (UTXO proofs, kernel proofs, contract state, BBS messages) across
// whichever peers currently support them.
//
// The core itself never opens a socket or derives a key: netcore.Session
// and crypto.OwnerKDF/BlockFinalizer are the seams a concrete deployment
// plugs into. Client wires those seams together with a config.Config and
// a history.Store into a running dispatcher loop.
package flyclient
