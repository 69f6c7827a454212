package interfaces

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrNotAuthorized is returned when the caller lacks the role an operation requires.
	ErrNotAuthorized = errors.New("caller is not authorized")

	// ErrAlreadyMinted is returned when minting an identifier that already has a holder.
	ErrAlreadyMinted = errors.New("token already minted")

	// ErrUnknownToken is returned when querying or mutating a token that was never minted.
	ErrUnknownToken = errors.New("unknown token")

	// ErrSupplyExceeded is returned when a mint would take the total supply past the cap.
	ErrSupplyExceeded = errors.New("max supply exceeded")

	// ErrCapReduced is returned when a new supply cap is lower than the current one.
	ErrCapReduced = errors.New("max supply can not be reduced")

	// ErrNotHolder is returned when a transfer names a source account that does not hold the token.
	ErrNotHolder = errors.New("account is not the token holder")

	// ErrInvalidAccount is returned for the zero address where a real account is required.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrInvalidApproval is returned when approving the holder itself or the caller as its own operator.
	ErrInvalidApproval = errors.New("invalid approval")

	// ErrIndexOutOfRange is returned by the enumeration accessors.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidEvent is returned when replaying an event that does not apply to the current state.
	ErrInvalidEvent = errors.New("invalid event")
)

// TokenID identifies a token. It is an unsigned 256-bit integer whose canonical
// string form is its decimal representation without leading zeros.
type TokenID uint256.Int

// NewTokenID converts a uint64 to a TokenID.
func NewTokenID(v uint64) TokenID {
	var u uint256.Int
	u.SetUint64(v)
	return TokenID(u)
}

// ParseTokenID parses the canonical decimal form of a token identifier.
func ParseTokenID(s string) (TokenID, error) {
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return TokenID{}, fmt.Errorf("invalid token id %q: %w", s, err)
	}
	if u.Dec() != s {
		return TokenID{}, fmt.Errorf("invalid token id %q: not in canonical decimal form", s)
	}
	return TokenID(*u), nil
}

// String returns the canonical decimal form.
func (id TokenID) String() string {
	u := uint256.Int(id)
	return u.Dec()
}

// Cmp compares two identifiers numerically.
func (id TokenID) Cmp(other TokenID) int {
	a, b := uint256.Int(id), uint256.Int(other)
	return a.Cmp(&b)
}

// MarshalText encodes the identifier as a decimal string.
func (id TokenID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a decimal string.
func (id *TokenID) UnmarshalText(text []byte) error {
	parsed, err := ParseTokenID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UtilityBinding couples a token to an external address and opaque metadata.
// It only confers utility while Address equals the token's current holder.
type UtilityBinding struct {
	Address  common.Address `json:"address"`
	Metadata string         `json:"metadata"`
}

// TokenView is the state of one token read at a single point in time.
// Binding is nil when the token was never bound.
type TokenView struct {
	ID         TokenID
	Holder     common.Address
	TokenURI   string
	Approved   common.Address
	Binding    *UtilityBinding
	HasUtility bool
}

// HolderTokens lists the tokens held by one account in enumeration order.
type HolderTokens struct {
	Holder common.Address `json:"holder"`
	Tokens []TokenID      `json:"tokens"`
}
