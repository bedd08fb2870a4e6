package request

import (
	"bytes"
	"fmt"

	"github.com/beamlight/flyclient/history"
	"github.com/beamlight/flyclient/verify"
)

// The Peer.HasFlag arguments below name netcore's connection-state flags
// (Node, Owned) and LoginFlags bits (SpreadingTransactions, Bbs), spelled
// as strings to avoid an import cycle (netcore.Connection implements Peer).
const (
	flagNode                  = "Node"
	flagOwned                 = "Owned"
	flagSpreadingTransactions = "SpreadingTransactions"
	flagBbs                   = "Bbs"
)

func nodeAndTip(peer Peer) bool  { return peer.HasFlag(flagNode) && peer.IsAtTip() }
func ownedAndTip(peer Peer) bool { return peer.HasFlag(flagOwned) && peer.IsAtTip() }
func justTip(peer Peer) bool     { return peer.IsAtTip() }

// --- Utxo ---

type UtxoQuery struct {
	Commitment []byte
}

type UtxoResult struct {
	Proofs [][]byte
}

func init() {
	Register(Utxo, Entry{
		Capability: justTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetProofUtxo", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(UtxoResult)
			if !ok {
				return errUnexpectedMessage(Utxo)
			}
			r.Result = res
			return nil
		},
	})
}

// --- Kernel ---

type KernelQuery struct {
	ID []byte
}

type KernelResult struct {
	Proof []byte
}

func init() {
	Register(Kernel, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetProofKernel", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(KernelResult)
			if !ok {
				return errUnexpectedMessage(Kernel)
			}
			r.Result = res
			return nil
		},
	})
}

// --- KernelByID (Kernel2 in the original) ---

type KernelByIDQuery struct {
	ID []byte
}

type KernelByIDResult struct {
	Height uint64
	Found  bool
}

func init() {
	Register(KernelByID, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetProofKernel2", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(KernelByIDResult)
			if !ok {
				return errUnexpectedMessage(KernelByID)
			}
			r.Result = res
			return nil
		},
	})
}

// --- Asset ---

// AssetIDAny is the AssetQuery.AssetID sentinel meaning "no specific asset
// requested"; any returned asset ID satisfies the cross-check below.
const AssetIDAny uint32 = 0

type AssetQuery struct {
	Owner   []byte
	AssetID uint32
}

type AssetResult struct {
	Owner   []byte
	AssetID uint32
	Info    []byte
	Proof   []byte
}

func init() {
	Register(Asset, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetAssetInfo", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(AssetResult)
			if !ok {
				return errUnexpectedMessage(Asset)
			}
			if len(res.Owner) > 0 {
				q, _ := r.Query.(AssetQuery)
				if len(q.Owner) > 0 && !bytes.Equal(q.Owner, res.Owner) {
					return fmt.Errorf("request: %s: returned owner does not match requested owner", Asset)
				}
				if q.AssetID != AssetIDAny && q.AssetID != res.AssetID {
					return fmt.Errorf("request: %s: returned asset id does not match requested asset id", Asset)
				}
			}
			r.Result = res
			return nil
		},
	})
}

// --- Events ---

type EventsQuery struct {
	OwnerID    []byte
	HeightMin  uint64
}

type EventsResult struct {
	Events []byte
}

func init() {
	Register(Events, Entry{
		Capability: ownedAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetEvents", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(EventsResult)
			if !ok {
				return errUnexpectedMessage(Events)
			}
			r.Result = res
			return nil
		},
	})
}

// --- Transaction ---

type TransactionQuery struct {
	Raw []byte
}

type TransactionResult struct {
	Accepted bool
}

func init() {
	Register(Transaction, Entry{
		Capability: func(peer Peer) bool {
			return peer.HasFlag(flagSpreadingTransactions) && peer.IsAtTip()
		},
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("NewTransaction", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(TransactionResult)
			if !ok {
				return errUnexpectedMessage(Transaction)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ShieldedList ---

type ShieldedListQuery struct {
	Id0   uint64
	Count uint32
}

type ShieldedListResult struct {
	Items [][]byte
}

func init() {
	Register(ShieldedList, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetShieldedList", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ShieldedListResult)
			if !ok {
				return errUnexpectedMessage(ShieldedList)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ProofShieldedInput ---

type ProofShieldedInputQuery struct {
	SpendPk []byte
}

type ProofShieldedInputResult struct {
	Height uint64
	Proof  []byte
}

func init() {
	Register(ProofShieldedInput, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetProofShieldedInp", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ProofShieldedInputResult)
			if !ok {
				return errUnexpectedMessage(ProofShieldedInput)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ProofShieldedOutput ---

type ProofShieldedOutputQuery struct {
	SerialPub []byte
}

type ProofShieldedOutputResult struct {
	ID         uint64
	Height     uint64
	Commitment []byte
	Proof      []byte
}

func init() {
	Register(ProofShieldedOutput, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetProofShieldedOutp", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ProofShieldedOutputResult)
			if !ok {
				return errUnexpectedMessage(ProofShieldedOutput)
			}
			r.Result = res
			return nil
		},
	})
}

// --- StateSummary ---

type StateSummaryQuery struct{}

type StateSummaryResult struct {
	Summary []byte
}

func init() {
	Register(StateSummary, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetStateSummary", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(StateSummaryResult)
			if !ok {
				return errUnexpectedMessage(StateSummary)
			}
			r.Result = res
			return nil
		},
	})
}

// --- EnumHeaders (HeaderRange) ---

type EnumHeadersQuery struct {
	Top   uint64
	Count uint32
}

// EnumHeadersResult carries the raw tip-first pack; the responding
// connection's PackVerifier reconstructs and PoW-checks it before a caller
// sees decoded headers.
type EnumHeadersResult struct {
	Prefix   verify.Prefix
	Elements []verify.Element
	Headers  []history.Header
}

func init() {
	Register(EnumHeaders, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetHdrPack", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(EnumHeadersResult)
			if !ok {
				return errUnexpectedMessage(EnumHeaders)
			}
			headers, ok := verifier.Pack(res.Prefix, res.Elements, nil)
			if !ok {
				return fmt.Errorf("request: %s: header pack failed proof-of-work verification", EnumHeaders)
			}
			res.Headers = headers
			r.Result = res
			return nil
		},
	})
}

// --- ContractVars ---

type ContractVarsQuery struct {
	KeyMin, KeyMax []byte
}

type ContractVarsResult struct {
	Vars [][]byte
}

func init() {
	Register(ContractVars, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetContractVars", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ContractVarsResult)
			if !ok {
				return errUnexpectedMessage(ContractVars)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ContractVar ---

type ContractVarQuery struct {
	Key []byte
}

type ContractVarResult struct {
	Value []byte
	Proof []byte
}

func init() {
	Register(ContractVar, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetContractVar", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ContractVarResult)
			if !ok {
				return errUnexpectedMessage(ContractVar)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ContractLogs ---

type ContractLogsQuery struct {
	HeightMin, HeightMax uint64
}

type ContractLogsResult struct {
	Logs [][]byte
}

func init() {
	Register(ContractLogs, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetContractLogs", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ContractLogsResult)
			if !ok {
				return errUnexpectedMessage(ContractLogs)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ContractLogProof ---

type ContractLogProofQuery struct {
	Pos []byte
}

// ContractLogProofResult cannot be validated in place: the header the proof
// is anchored to is not part of the reply, matching the original.
type ContractLogProofResult struct {
	Proof []byte
}

func init() {
	Register(ContractLogProof, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetContractLogProof", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ContractLogProofResult)
			if !ok {
				return errUnexpectedMessage(ContractLogProof)
			}
			r.Result = res
			return nil
		},
	})
}

// --- ShieldedOutputsAt ---

type ShieldedOutputsAtQuery struct {
	Height uint64
}

type ShieldedOutputsAtResult struct {
	Count uint32
}

func init() {
	Register(ShieldedOutputsAt, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetShieldedOutputsAt", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(ShieldedOutputsAtResult)
			if !ok {
				return errUnexpectedMessage(ShieldedOutputsAt)
			}
			r.Result = res
			return nil
		},
	})
}

// --- BodyPack ---

type BodyPackQuery struct {
	Top   uint64
	Count uint32
}

// BodyPackResult carries the bodies alongside the header pack that commits
// to them. fly_client.cpp's RequestBodyPack::OnRequestData does not verify
// the header pack (only RequestEnumHdrs::OnRequestData calls
// DecodeAndCheck); verifying it here too is a deliberate generalization so
// that bodies are never accepted without checking the PoW of the headers
// they belong to.
type BodyPackResult struct {
	Prefix   verify.Prefix
	Elements []verify.Element
	Headers  []history.Header
	Bodies   [][]byte
}

func init() {
	Register(BodyPack, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetBodyPack", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(BodyPackResult)
			if !ok {
				return errUnexpectedMessage(BodyPack)
			}
			headers, ok := verifier.Pack(res.Prefix, res.Elements, nil)
			if !ok {
				return fmt.Errorf("request: %s: header pack failed proof-of-work verification", BodyPack)
			}
			res.Headers = headers
			r.Result = res
			return nil
		},
	})
}

// --- Body ---

type BodyQuery struct {
	Height uint64
}

type BodyResult struct {
	Body []byte
}

func init() {
	Register(Body, Entry{
		Capability: nodeAndTip,
		Send: func(peer Peer, t Transport, r *Request) error {
			return t.SendMessage("GetBody", r.Query)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			res, ok := msg.(BodyResult)
			if !ok {
				return errUnexpectedMessage(Body)
			}
			r.Result = res
			return nil
		},
	})
}

// --- BbsMsg ---

type BbsMsgQuery struct {
	Message []byte
}

type BbsMsgResult struct{}

func init() {
	Register(BbsMsg, Entry{
		Capability: func(peer Peer) bool {
			return peer.HasFlag(flagBbs) && peer.IsAtTip()
		},
		Send: func(peer Peer, t Transport, r *Request) error {
			// Sending a Bbs message is followed by a Ping so the
			// connection has a matching inbound message to complete the
			// request against even though bbs delivery has no direct ack.
			if err := t.SendMessage("BbsMsg", r.Query); err != nil {
				return err
			}
			return t.SendMessage("Ping", nil)
		},
		Validate: func(r *Request, msg any, verifier PackVerifier) error {
			r.Result = BbsMsgResult{}
			return nil
		},
	})
}
