// Package registry implements the collectible registry state machine: a capped,
// administrator-governed ledger of tokens, each with a single holder and an
// optional utility binding that only confers utility while it points at the
// current holder.
//
// The Registry composes three concerns over one shared state:
//
//   - Holdership ledger: mint, transfer, ERC-721 style approvals and
//     enumeration. Tokens are never removed once minted.
//   - Utility-binding layer: a token may carry a bound address plus opaque
//     metadata. HasUtility is recomputed from the current holder on every call,
//     so a transfer revokes utility without touching the stored binding.
//   - Governance: the owner mints, raises the supply cap, sets the metadata
//     base and appoints the administrator; owner or administrator manage
//     utility bindings.
//
// # Execution Model
//
// Every operation runs under a single registry lock and validates completely
// before changing anything. A successful operation produces a batch of events
// which is first handed to the configured EventJournal, then applied to the
// in-memory state, appended to the event log and finally published to
// subscribers in commit order. If the journal rejects the batch the operation
// fails and the state is untouched.
//
// State changes are derived exclusively from events, which is what makes
// Restore (replaying a journal) and FromSnapshot followed by Replay produce the
// same registry as the live one.
//
// # Usage Example
//
//	reg, err := registry.New(ownerAddr, registry.WithJournal(j), registry.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	id := interfaces.NewTokenID(20)
//	if err := reg.MintWithUtilityBinding(ownerAddr, holder, id, "vip-pass"); err != nil {
//	    return err
//	}
//
//	reg.HasUtility(id) // true until the token changes holder
package registry
