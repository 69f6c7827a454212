package registry

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// Snapshot captures the complete registry state at the current sequence number.
func (r *Registry) Snapshot() interfaces.RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := interfaces.RegistrySnapshot{
		Seq:           r.seq,
		Owner:         r.owner,
		Administrator: r.administrator,
		MaxSupply:     r.maxSupply,
		MetadataBase:  r.metadataBase,
		Tokens:        make([]interfaces.TokenSnapshot, 0, len(r.allTokens)),
	}

	for _, id := range r.allTokens {
		tok := r.tokens[id]
		ts := interfaces.TokenSnapshot{ID: id, Holder: tok.holder, Approved: tok.approved}
		if tok.binding != nil {
			binding := *tok.binding
			ts.Binding = &binding
		}
		snap.Tokens = append(snap.Tokens, ts)
	}

	// Holdings follow first-mint order of their holders' tokens for a stable encoding.
	seen := make(map[common.Address]bool)
	for _, id := range r.allTokens {
		holder := r.tokens[id].holder
		if seen[holder] {
			continue
		}
		seen[holder] = true
		snap.Holdings = append(snap.Holdings, interfaces.HolderTokens{
			Holder: holder,
			Tokens: append([]interfaces.TokenID(nil), r.holdings[holder]...),
		})
	}

	for holder, ops := range r.operators {
		for operator := range ops {
			snap.Operators = append(snap.Operators, interfaces.OperatorApproval{Holder: holder, Operator: operator})
		}
	}
	sort.Slice(snap.Operators, func(i, j int) bool {
		a, b := snap.Operators[i], snap.Operators[j]
		if c := bytes.Compare(a.Holder[:], b.Holder[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.Operator[:], b.Operator[:]) < 0
	})
	return snap
}

// FromSnapshot restores a registry from snap. Journal events with a sequence
// number above snap.Seq can then be applied with Replay.
func FromSnapshot(snap interfaces.RegistrySnapshot, opts ...Option) (*Registry, error) {
	if snap.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: snapshot has no owner", interfaces.ErrInvalidEvent)
	}
	if uint64(len(snap.Tokens)) > snap.MaxSupply {
		return nil, fmt.Errorf("%w: snapshot holds %d tokens above cap %d", interfaces.ErrInvalidEvent, len(snap.Tokens), snap.MaxSupply)
	}

	r := newEmpty(opts)
	r.seq = snap.Seq
	r.owner = snap.Owner
	r.administrator = snap.Administrator
	r.maxSupply = snap.MaxSupply
	r.metadataBase = snap.MetadataBase

	for _, ts := range snap.Tokens {
		if _, exists := r.tokens[ts.ID]; exists {
			return nil, fmt.Errorf("%w: token %s listed twice", interfaces.ErrInvalidEvent, ts.ID)
		}
		if ts.Holder == (common.Address{}) {
			return nil, fmt.Errorf("%w: token %s has no holder", interfaces.ErrInvalidEvent, ts.ID)
		}
		tok := &tokenState{holder: ts.Holder, approved: ts.Approved, holderIndex: -1}
		if ts.Binding != nil {
			binding := *ts.Binding
			tok.binding = &binding
		}
		r.tokens[ts.ID] = tok
		r.allTokens = append(r.allTokens, ts.ID)
	}

	for _, h := range snap.Holdings {
		for i, id := range h.Tokens {
			tok, ok := r.tokens[id]
			if !ok || tok.holder != h.Holder || tok.holderIndex != -1 {
				return nil, fmt.Errorf("%w: holding of %s by %s does not match tokens", interfaces.ErrInvalidEvent, id, h.Holder.Hex())
			}
			tok.holderIndex = i
		}
		r.holdings[h.Holder] = append([]interfaces.TokenID(nil), h.Tokens...)
	}
	for id, tok := range r.tokens {
		if tok.holderIndex == -1 {
			return nil, fmt.Errorf("%w: token %s missing from holdings", interfaces.ErrInvalidEvent, id)
		}
	}

	for _, op := range snap.Operators {
		if r.operators[op.Holder] == nil {
			r.operators[op.Holder] = make(map[common.Address]bool)
		}
		r.operators[op.Holder][op.Operator] = true
	}
	return r, nil
}
