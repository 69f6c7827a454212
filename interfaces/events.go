package interfaces

import "github.com/ethereum/go-ethereum/common"

// EventKind names a registry event.
type EventKind string

const (
	// EventInitialized records registry creation: Account is the owner,
	// To the administrator, MaxSupply and MetadataBase the initial values.
	EventInitialized EventKind = "Initialized"

	// EventTransfer records a holder change. From is the zero address on mint.
	EventTransfer EventKind = "Transfer"

	// EventMint records a plain mint to To.
	EventMint EventKind = "Mint"

	// EventMintWithUtilityBinding records a mint to To bound to To with Metadata.
	EventMintWithUtilityBinding EventKind = "MintWithUtilityBinding"

	// EventApproval records Holder approving Account for TokenID.
	EventApproval EventKind = "Approval"

	// EventApprovalForAll records Holder setting Account as operator (Approved).
	EventApprovalForAll EventKind = "ApprovalForAll"

	// EventUtilityBindingChanged records TokenID bound to Account with Metadata.
	EventUtilityBindingChanged EventKind = "UtilityBindingChanged"

	// EventMaxSupplyChanged records a new MaxSupply.
	EventMaxSupplyChanged EventKind = "MaxSupplyChanged"

	// EventMetadataBaseChanged records a new MetadataBase.
	EventMetadataBaseChanged EventKind = "MetadataBaseChanged"

	// EventAdministratorChanged records Account becoming administrator.
	EventAdministratorChanged EventKind = "AdministratorChanged"
)

// Event is one entry of the registry's append-only audit log. Which fields
// are meaningful depends on Kind; the rest hold zero values.
type Event struct {
	Seq          uint64         `json:"seq"`
	Kind         EventKind      `json:"kind"`
	TokenID      TokenID        `json:"token_id"`
	From         common.Address `json:"from"`
	To           common.Address `json:"to"`
	Holder       common.Address `json:"holder"`
	Account      common.Address `json:"account"`
	Approved     bool           `json:"approved"`
	Metadata     string         `json:"metadata"`
	MetadataBase string         `json:"metadata_base"`
	MaxSupply    uint64         `json:"max_supply"`
}

func NewInitializedEvent(owner, administrator common.Address, maxSupply uint64, metadataBase string) Event {
	return Event{Kind: EventInitialized, Account: owner, To: administrator, MaxSupply: maxSupply, MetadataBase: metadataBase}
}

func NewTransferEvent(from, to common.Address, id TokenID) Event {
	return Event{Kind: EventTransfer, From: from, To: to, TokenID: id}
}

func NewMintEvent(to common.Address, id TokenID) Event {
	return Event{Kind: EventMint, To: to, TokenID: id}
}

func NewMintWithUtilityBindingEvent(to common.Address, id TokenID, metadata string) Event {
	return Event{Kind: EventMintWithUtilityBinding, To: to, TokenID: id, Metadata: metadata}
}

func NewApprovalEvent(holder, approved common.Address, id TokenID) Event {
	return Event{Kind: EventApproval, Holder: holder, Account: approved, TokenID: id}
}

func NewApprovalForAllEvent(holder, operator common.Address, approved bool) Event {
	return Event{Kind: EventApprovalForAll, Holder: holder, Account: operator, Approved: approved}
}

func NewUtilityBindingChangedEvent(id TokenID, bound common.Address, metadata string) Event {
	return Event{Kind: EventUtilityBindingChanged, TokenID: id, Account: bound, Metadata: metadata}
}

func NewMaxSupplyChangedEvent(maxSupply uint64) Event {
	return Event{Kind: EventMaxSupplyChanged, MaxSupply: maxSupply}
}

func NewMetadataBaseChangedEvent(base string) Event {
	return Event{Kind: EventMetadataBaseChanged, MetadataBase: base}
}

func NewAdministratorChangedEvent(administrator common.Address) Event {
	return Event{Kind: EventAdministratorChanged, Account: administrator}
}
