package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// Restore rebuilds a registry from a complete event history, starting with
// the Initialized event. The journal option, if given, only receives events
// committed after the restore.
func Restore(events []interfaces.Event, opts ...Option) (*Registry, error) {
	if len(events) == 0 || events[0].Kind != interfaces.EventInitialized {
		return nil, fmt.Errorf("%w: history must start with %s", interfaces.ErrInvalidEvent, interfaces.EventInitialized)
	}

	r := newEmpty(opts)
	journal := r.journal
	r.journal = nil
	if err := r.Replay(events); err != nil {
		return nil, err
	}
	r.journal = journal
	return r, nil
}

// Replay applies already-journaled events on top of the current state.
// Events at or below the current sequence number are skipped; the rest must
// continue the sequence without gaps. Replayed events are neither journaled
// nor published to subscribers.
func (r *Registry) Replay(events []interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range events {
		if ev.Seq <= r.seq {
			continue
		}
		if ev.Seq != r.seq+1 {
			return fmt.Errorf("%w: expected seq %d, got %d", interfaces.ErrInvalidEvent, r.seq+1, ev.Seq)
		}
		if err := r.applyEvent(ev); err != nil {
			return fmt.Errorf("replay %s #%d: %w", ev.Kind, ev.Seq, err)
		}
		r.seq = ev.Seq
		r.events = append(r.events, ev)
	}
	return nil
}

// applyEvent is the only place registry state changes. Each case checks the
// event against the current state before mutating anything.
func (r *Registry) applyEvent(ev interfaces.Event) error {
	switch ev.Kind {
	case interfaces.EventInitialized:
		if r.seq != 0 || r.owner != (common.Address{}) {
			return fmt.Errorf("%w: registry already initialized", interfaces.ErrInvalidEvent)
		}
		r.owner = ev.Account
		r.administrator = ev.To
		r.maxSupply = ev.MaxSupply
		r.metadataBase = ev.MetadataBase

	case interfaces.EventTransfer:
		if ev.To == (common.Address{}) {
			return fmt.Errorf("%w: transfer to zero address", interfaces.ErrInvalidEvent)
		}
		if ev.From == (common.Address{}) {
			return r.applyMint(ev.To, ev.TokenID)
		}
		tok, ok := r.tokens[ev.TokenID]
		if !ok || tok.holder != ev.From {
			return fmt.Errorf("%w: %s is not held by %s", interfaces.ErrInvalidEvent, ev.TokenID, ev.From.Hex())
		}
		r.removeHolding(ev.From, tok)
		r.addHolding(ev.To, ev.TokenID, tok)
		tok.holder = ev.To
		tok.approved = common.Address{}

	case interfaces.EventMint:
		if _, err := r.heldBy(ev.TokenID, ev.To); err != nil {
			return err
		}

	case interfaces.EventMintWithUtilityBinding:
		tok, err := r.heldBy(ev.TokenID, ev.To)
		if err != nil {
			return err
		}
		tok.binding = &interfaces.UtilityBinding{Address: ev.To, Metadata: ev.Metadata}

	case interfaces.EventApproval:
		tok, err := r.heldBy(ev.TokenID, ev.Holder)
		if err != nil {
			return err
		}
		tok.approved = ev.Account

	case interfaces.EventApprovalForAll:
		if ev.Approved {
			if r.operators[ev.Holder] == nil {
				r.operators[ev.Holder] = make(map[common.Address]bool)
			}
			r.operators[ev.Holder][ev.Account] = true
		} else if ops := r.operators[ev.Holder]; ops != nil {
			delete(ops, ev.Account)
			if len(ops) == 0 {
				delete(r.operators, ev.Holder)
			}
		}

	case interfaces.EventUtilityBindingChanged:
		tok, ok := r.tokens[ev.TokenID]
		if !ok {
			return fmt.Errorf("%w: binding for unknown token %s", interfaces.ErrInvalidEvent, ev.TokenID)
		}
		tok.binding = &interfaces.UtilityBinding{Address: ev.Account, Metadata: ev.Metadata}

	case interfaces.EventMaxSupplyChanged:
		if ev.MaxSupply < r.maxSupply {
			return fmt.Errorf("%w: cap reduced from %d to %d", interfaces.ErrInvalidEvent, r.maxSupply, ev.MaxSupply)
		}
		r.maxSupply = ev.MaxSupply

	case interfaces.EventMetadataBaseChanged:
		r.metadataBase = ev.MetadataBase

	case interfaces.EventAdministratorChanged:
		r.administrator = ev.Account

	default:
		return fmt.Errorf("%w: unknown kind %q", interfaces.ErrInvalidEvent, ev.Kind)
	}
	return nil
}

func (r *Registry) applyMint(to common.Address, id interfaces.TokenID) error {
	if _, exists := r.tokens[id]; exists {
		return fmt.Errorf("%w: %s minted twice", interfaces.ErrInvalidEvent, id)
	}
	if uint64(len(r.allTokens)) >= r.maxSupply {
		return fmt.Errorf("%w: mint of %s exceeds cap %d", interfaces.ErrInvalidEvent, id, r.maxSupply)
	}
	tok := &tokenState{holder: to}
	r.tokens[id] = tok
	r.allTokens = append(r.allTokens, id)
	r.addHolding(to, id, tok)
	return nil
}

func (r *Registry) heldBy(id interfaces.TokenID, holder common.Address) (*tokenState, error) {
	tok, ok := r.tokens[id]
	if !ok || tok.holder != holder {
		return nil, fmt.Errorf("%w: %s is not held by %s", interfaces.ErrInvalidEvent, id, holder.Hex())
	}
	return tok, nil
}

func (r *Registry) addHolding(holder common.Address, id interfaces.TokenID, tok *tokenState) {
	tok.holderIndex = len(r.holdings[holder])
	r.holdings[holder] = append(r.holdings[holder], id)
}

// removeHolding swaps the last held token into the removed slot.
func (r *Registry) removeHolding(holder common.Address, tok *tokenState) {
	held := r.holdings[holder]
	last := len(held) - 1
	if tok.holderIndex != last {
		moved := held[last]
		held[tok.holderIndex] = moved
		r.tokens[moved].holderIndex = tok.holderIndex
	}
	if last == 0 {
		delete(r.holdings, holder)
		return
	}
	r.holdings[holder] = held[:last]
}
