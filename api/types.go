package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// SignatureHeader carries the caller signature of a mutating request in the
// "<address>:<signature>" form produced by go-utils signature.Signer.
const SignatureHeader = "X-Registry-Signature"

// SigningPayload is the message a caller signs for a request: the method and
// path bind the signature to one endpoint, the body to one set of arguments.
func SigningPayload(method, path string, body []byte) []byte {
	payload := make([]byte, 0, len(method)+len(path)+len(body)+2)
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, path...)
	payload = append(payload, '\n')
	return append(payload, body...)
}

// Signed is embedded in every mutating request body. Deadline is a unix
// timestamp in seconds after which the signature is no longer accepted.
// Signatures are deterministic, so two identical requests need distinct
// nonces to both be accepted.
type Signed struct {
	Deadline int64  `json:"deadline"`
	Nonce    string `json:"nonce,omitempty"`
}

// MintRequest mints TokenID to To. A non-nil Metadata mints with a utility
// binding to To.
type MintRequest struct {
	Signed
	To       common.Address     `json:"to"`
	TokenID  interfaces.TokenID `json:"token_id"`
	Metadata *string            `json:"metadata,omitempty"`
}

type TransferRequest struct {
	Signed
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
}

type ApproveRequest struct {
	Signed
	To common.Address `json:"to"`
}

type OperatorRequest struct {
	Signed
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type UtilityBindingRequest struct {
	Signed
	Address  common.Address `json:"address"`
	Metadata string         `json:"metadata"`
}

type MaxSupplyRequest struct {
	Signed
	MaxSupply uint64 `json:"max_supply"`
}

type MetadataBaseRequest struct {
	Signed
	MetadataBase string `json:"metadata_base"`
}

type AdministratorRequest struct {
	Signed
	Administrator common.Address `json:"administrator"`
}

type CheckpointRequest struct {
	Signed
}

// MutationResponse acknowledges a committed mutating request.
type MutationResponse struct {
	Status string         `json:"status"`
	Caller common.Address `json:"caller"`
}

// TokenResponse describes one minted token.
type TokenResponse struct {
	TokenID    interfaces.TokenID         `json:"token_id"`
	Holder     common.Address             `json:"holder"`
	TokenURI   string                     `json:"token_uri"`
	Approved   common.Address             `json:"approved"`
	Binding    *interfaces.UtilityBinding `json:"binding,omitempty"`
	HasUtility bool                       `json:"has_utility"`
}

// UtilityResponse is the utility view of a token. Unknown tokens report no
// utility rather than an error.
type UtilityResponse struct {
	TokenID      interfaces.TokenID `json:"token_id"`
	HasUtility   bool               `json:"has_utility"`
	BoundAddress common.Address     `json:"bound_address"`
	Metadata     string             `json:"metadata"`
}

type HolderResponse struct {
	Holder  common.Address       `json:"holder"`
	Balance uint64               `json:"balance"`
	Tokens  []interfaces.TokenID `json:"tokens"`
}

type GovernanceResponse struct {
	Owner         common.Address `json:"owner"`
	Administrator common.Address `json:"administrator"`
	MaxSupply     uint64         `json:"max_supply"`
	MetadataBase  string         `json:"metadata_base"`
	TotalSupply   uint64         `json:"total_supply"`
}

type EventsResponse struct {
	Events []interfaces.Event `json:"events"`
}

// CheckpointResponse names the stored checkpoint and the last event it covers.
type CheckpointResponse struct {
	ContentID string `json:"content_id"`
	Seq       uint64 `json:"seq"`
}
