package interfaces

import "github.com/ethereum/go-ethereum/common"

// TokenSnapshot is the stored state of a single token.
type TokenSnapshot struct {
	ID       TokenID         `json:"id"`
	Holder   common.Address  `json:"holder"`
	Approved common.Address  `json:"approved"`
	Binding  *UtilityBinding `json:"binding,omitempty"`
}

// OperatorApproval is a holder-wide operator grant.
type OperatorApproval struct {
	Holder   common.Address `json:"holder"`
	Operator common.Address `json:"operator"`
}

// RegistrySnapshot captures the full registry state after the event with
// sequence number Seq. Tokens are listed in mint order and Holdings in
// per-holder enumeration order, so restoring preserves every index accessor.
type RegistrySnapshot struct {
	Seq           uint64             `json:"seq"`
	Owner         common.Address     `json:"owner"`
	Administrator common.Address     `json:"administrator"`
	MaxSupply     uint64             `json:"max_supply"`
	MetadataBase  string             `json:"metadata_base"`
	Tokens        []TokenSnapshot    `json:"tokens"`
	Holdings      []HolderTokens     `json:"holdings"`
	Operators     []OperatorApproval `json:"operators"`
}
