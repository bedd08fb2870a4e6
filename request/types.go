// Package request defines the peer-request catalogue: the set of query
// kinds a Connection can send to a remote node, what capability a peer must
// advertise to accept each one, and how a response is validated before the
// caller sees it.
package request

// Type identifies a request kind. The concrete list mirrors the full
// REQUEST_TYPES_All catalogue: proofs and reads a light client can ask a
// full node to serve, plus network-relay operations (Transaction, BbsMsg).
type Type uint8

const (
	Utxo Type = iota
	Kernel
	KernelByID
	Asset
	Events
	Transaction
	ShieldedList
	ProofShieldedInput
	ProofShieldedOutput
	StateSummary
	EnumHeaders
	ContractVars
	ContractVar
	ContractLogs
	ContractLogProof
	ShieldedOutputsAt
	BodyPack
	Body
	BbsMsg

	numTypes
)

var typeNames = [numTypes]string{
	Utxo:                "Utxo",
	Kernel:               "Kernel",
	KernelByID:           "KernelByID",
	Asset:                "Asset",
	Events:               "Events",
	Transaction:          "Transaction",
	ShieldedList:         "ShieldedList",
	ProofShieldedInput:   "ProofShieldedInput",
	ProofShieldedOutput:  "ProofShieldedOutput",
	StateSummary:         "StateSummary",
	EnumHeaders:          "EnumHeaders",
	ContractVars:         "ContractVars",
	ContractVar:          "ContractVar",
	ContractLogs:         "ContractLogs",
	ContractLogProof:     "ContractLogProof",
	ShieldedOutputsAt:    "ShieldedOutputsAt",
	BodyPack:             "BodyPack",
	Body:                 "Body",
	BbsMsg:               "BbsMsg",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t >= numTypes {
		return "Unknown"
	}
	return typeNames[t]
}
