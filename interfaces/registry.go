package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// TokenRegistry is the operation surface of the collectible registry.
// Every mutating call is atomic: it either commits fully and emits its
// events, or fails and leaves the registry unchanged.
type TokenRegistry interface {
	// Holdership ledger
	Mint(caller, to common.Address, id TokenID) error
	Transfer(caller, from, to common.Address, id TokenID) error
	Approve(caller, to common.Address, id TokenID) error
	SetApprovalForAll(caller, operator common.Address, approved bool) error
	HolderOf(id TokenID) (common.Address, error)
	TokenURI(id TokenID) (string, error)
	Exists(id TokenID) bool
	GetApproved(id TokenID) (common.Address, error)
	IsApprovedForAll(holder, operator common.Address) bool
	BalanceOf(holder common.Address) (uint64, error)
	TotalSupply() uint64
	TokenByIndex(index uint64) (TokenID, error)
	TokenOfHolderByIndex(holder common.Address, index uint64) (TokenID, error)

	// Utility-binding layer
	MintWithUtilityBinding(caller, to common.Address, id TokenID, metadata string) error
	SetUtilityBinding(caller common.Address, id TokenID, bound common.Address, metadata string) error
	HasUtility(id TokenID) bool
	BoundAddress(id TokenID) common.Address
	Metadata(id TokenID) string
	Token(id TokenID) (TokenView, error)

	// Governance
	SetMaxSupply(caller common.Address, maxSupply uint64) error
	SetMetadataBase(caller common.Address, base string) error
	SetAdministrator(caller, administrator common.Address) error
	Owner() common.Address
	Administrator() common.Address
	MaxSupply() uint64
	MetadataBase() string

	// Audit log
	Events(fromSeq uint64) []Event
	SubscribeEvents(ch chan<- Event) event.Subscription
	Snapshot() RegistrySnapshot
}

// EventJournal durably records committed events. Append must either persist
// the whole batch or none of it.
type EventJournal interface {
	Append(events []Event) error
	Load(ctx context.Context, fromSeq uint64) ([]Event, error)
}
