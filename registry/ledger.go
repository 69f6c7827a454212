package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// Mint assigns a new token to to. Only the owner may mint, the identifier must
// be unused and the post-mint supply must not exceed the cap.
func (r *Registry) Mint(caller, to common.Address, id interfaces.TokenID) error {
	return r.execute("mint", func() ([]interfaces.Event, error) {
		if err := r.validateMint(caller, to, id); err != nil {
			return nil, err
		}
		return []interfaces.Event{
			interfaces.NewTransferEvent(common.Address{}, to, id),
			interfaces.NewMintEvent(to, id),
		}, nil
	})
}

func (r *Registry) validateMint(caller, to common.Address, id interfaces.TokenID) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: can not mint to the zero address", interfaces.ErrInvalidAccount)
	}
	if _, exists := r.tokens[id]; exists {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyMinted, id)
	}
	if uint64(len(r.allTokens)) >= r.maxSupply {
		return fmt.Errorf("%w: cap is %d", interfaces.ErrSupplyExceeded, r.maxSupply)
	}
	return nil
}

// Transfer moves id from from to to. The caller must be the holder, the
// token's approved account or an operator of the holder. The token's
// approval is cleared; its utility binding stays stored but no longer
// matches the holder, so HasUtility turns false.
func (r *Registry) Transfer(caller, from, to common.Address, id interfaces.TokenID) error {
	return r.execute("transfer", func() ([]interfaces.Event, error) {
		tok, err := r.token(id)
		if err != nil {
			return nil, err
		}
		if !r.isApprovedOrHolder(caller, tok) {
			return nil, fmt.Errorf("%w: %s is not token holder or approved", interfaces.ErrNotAuthorized, caller.Hex())
		}
		if tok.holder != from {
			return nil, fmt.Errorf("%w: %s does not hold %s", interfaces.ErrNotHolder, from.Hex(), id)
		}
		if to == (common.Address{}) {
			return nil, fmt.Errorf("%w: can not transfer to the zero address", interfaces.ErrInvalidAccount)
		}
		return []interfaces.Event{interfaces.NewTransferEvent(from, to, id)}, nil
	})
}

func (r *Registry) isApprovedOrHolder(caller common.Address, tok *tokenState) bool {
	return caller == tok.holder || caller == tok.approved || r.operators[tok.holder][caller]
}

// Approve lets to transfer id on behalf of its holder until the next transfer.
// Approving the zero address revokes the approval.
func (r *Registry) Approve(caller, to common.Address, id interfaces.TokenID) error {
	return r.execute("approve", func() ([]interfaces.Event, error) {
		tok, err := r.token(id)
		if err != nil {
			return nil, err
		}
		if to == tok.holder {
			return nil, fmt.Errorf("%w: approval to current holder", interfaces.ErrInvalidApproval)
		}
		if caller != tok.holder && !r.operators[tok.holder][caller] {
			return nil, fmt.Errorf("%w: %s is not token holder or approved for all", interfaces.ErrNotAuthorized, caller.Hex())
		}
		return []interfaces.Event{interfaces.NewApprovalEvent(tok.holder, to, id)}, nil
	})
}

// SetApprovalForAll grants or revokes operator rights over all of caller's tokens.
func (r *Registry) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	return r.execute("set_approval_for_all", func() ([]interfaces.Event, error) {
		if operator == caller {
			return nil, fmt.Errorf("%w: approve to caller", interfaces.ErrInvalidApproval)
		}
		return []interfaces.Event{interfaces.NewApprovalForAllEvent(caller, operator, approved)}, nil
	})
}

// HolderOf returns the current holder of id.
func (r *Registry) HolderOf(id interfaces.TokenID) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, err := r.token(id)
	if err != nil {
		return common.Address{}, err
	}
	return tok.holder, nil
}

// TokenURI returns the metadata base followed by the decimal form of id.
func (r *Registry) TokenURI(id interfaces.TokenID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.token(id); err != nil {
		return "", err
	}
	return r.metadataBase + id.String(), nil
}

// Exists reports whether id was ever minted.
func (r *Registry) Exists(id interfaces.TokenID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tokens[id]
	return ok
}

// GetApproved returns the single-token approval of id, the zero address if none.
func (r *Registry) GetApproved(id interfaces.TokenID) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, err := r.token(id)
	if err != nil {
		return common.Address{}, err
	}
	return tok.approved, nil
}

// IsApprovedForAll reports whether operator may manage all of holder's tokens.
func (r *Registry) IsApprovedForAll(holder, operator common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.operators[holder][operator]
}

// BalanceOf returns the number of tokens held by holder.
func (r *Registry) BalanceOf(holder common.Address) (uint64, error) {
	if holder == (common.Address{}) {
		return 0, fmt.Errorf("%w: zero address is not a valid holder", interfaces.ErrInvalidAccount)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return uint64(len(r.holdings[holder])), nil
}

// TotalSupply returns the number of minted tokens.
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return uint64(len(r.allTokens))
}

// TokenByIndex returns the index-th minted token in mint order.
func (r *Registry) TokenByIndex(index uint64) (interfaces.TokenID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= uint64(len(r.allTokens)) {
		return interfaces.TokenID{}, fmt.Errorf("%w: global index %d", interfaces.ErrIndexOutOfRange, index)
	}
	return r.allTokens[index], nil
}

// TokenOfHolderByIndex returns the index-th token held by holder. The order
// changes when a token leaves the holder: the last token takes its slot.
func (r *Registry) TokenOfHolderByIndex(holder common.Address, index uint64) (interfaces.TokenID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	held := r.holdings[holder]
	if index >= uint64(len(held)) {
		return interfaces.TokenID{}, fmt.Errorf("%w: holder index %d", interfaces.ErrIndexOutOfRange, index)
	}
	return held[index], nil
}

// TokensOf returns a copy of holder's tokens in enumeration order.
func (r *Registry) TokensOf(holder common.Address) []interfaces.TokenID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]interfaces.TokenID(nil), r.holdings[holder]...)
}
