package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// MintWithUtilityBinding mints id to to and binds it to to with metadata in
// the same commit. It fails under the same conditions as Mint.
func (r *Registry) MintWithUtilityBinding(caller, to common.Address, id interfaces.TokenID, metadata string) error {
	return r.execute("mint_with_utility_binding", func() ([]interfaces.Event, error) {
		if err := r.validateMint(caller, to, id); err != nil {
			return nil, err
		}
		return []interfaces.Event{
			interfaces.NewTransferEvent(common.Address{}, to, id),
			interfaces.NewMintWithUtilityBindingEvent(to, id, metadata),
		}, nil
	})
}

// SetUtilityBinding overwrites the binding of an existing token. Only the
// owner or the administrator may call it.
func (r *Registry) SetUtilityBinding(caller common.Address, id interfaces.TokenID, bound common.Address, metadata string) error {
	return r.execute("set_utility_binding", func() ([]interfaces.Event, error) {
		if !r.isOwnerOrAdmin(caller) {
			return nil, fmt.Errorf("%w: %s is not the owner or the administrator", interfaces.ErrNotAuthorized, caller.Hex())
		}
		if _, err := r.token(id); err != nil {
			return nil, err
		}
		return []interfaces.Event{interfaces.NewUtilityBindingChangedEvent(id, bound, metadata)}, nil
	})
}

// HasUtility reports whether id carries a binding whose address is the
// token's current holder. Unknown tokens have no utility.
func (r *Registry) HasUtility(id interfaces.TokenID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, ok := r.tokens[id]
	if !ok {
		return false
	}
	return hasUtility(tok)
}

func hasUtility(tok *tokenState) bool {
	return tok.binding != nil && tok.binding.Address == tok.holder
}

// Token returns a consistent view of id under a single read lock.
func (r *Registry) Token(id interfaces.TokenID) (interfaces.TokenView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tok, err := r.token(id)
	if err != nil {
		return interfaces.TokenView{}, err
	}
	view := interfaces.TokenView{
		ID:         id,
		Holder:     tok.holder,
		TokenURI:   r.metadataBase + id.String(),
		Approved:   tok.approved,
		HasUtility: hasUtility(tok),
	}
	if tok.binding != nil {
		binding := *tok.binding
		view.Binding = &binding
	}
	return view, nil
}

// BoundAddress returns the stored bound address regardless of its validity.
func (r *Registry) BoundAddress(id interfaces.TokenID) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tok, ok := r.tokens[id]; ok && tok.binding != nil {
		return tok.binding.Address
	}
	return common.Address{}
}

// Metadata returns the stored binding metadata regardless of its validity.
func (r *Registry) Metadata(id interfaces.TokenID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tok, ok := r.tokens[id]; ok && tok.binding != nil {
		return tok.binding.Metadata
	}
	return ""
}
