package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/metrics"
)

// DefaultMaxSupply is the supply cap of a freshly created registry.
const DefaultMaxSupply uint64 = 100

// Option configures a Registry at construction.
type Option func(*Registry)

// WithJournal makes every committed event batch go through j before it is applied.
func WithJournal(j interfaces.EventJournal) Option {
	return func(r *Registry) { r.journal = j }
}

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithMaxSupply overrides DefaultMaxSupply for New.
func WithMaxSupply(maxSupply uint64) Option {
	return func(r *Registry) { r.maxSupply = maxSupply }
}

// WithMetadataBase sets the initial metadata base for New.
func WithMetadataBase(base string) Option {
	return func(r *Registry) { r.metadataBase = base }
}

type tokenState struct {
	holder   common.Address
	approved common.Address
	binding  *interfaces.UtilityBinding
	// position of the token in holdings[holder]
	holderIndex int
}

// Registry holds all registry state and implements interfaces.TokenRegistry.
type Registry struct {
	mu sync.RWMutex

	owner         common.Address
	administrator common.Address
	maxSupply     uint64
	metadataBase  string

	tokens    map[interfaces.TokenID]*tokenState
	allTokens []interfaces.TokenID
	holdings  map[common.Address][]interfaces.TokenID
	operators map[common.Address]map[common.Address]bool

	seq    uint64
	events []interfaces.Event

	journal interfaces.EventJournal
	log     *slog.Logger

	// emitMu keeps feed delivery in commit order without holding mu during Send.
	emitMu sync.Mutex
	feed   event.Feed
}

var _ interfaces.TokenRegistry = (*Registry)(nil)

func newEmpty(opts []Option) *Registry {
	r := &Registry{
		maxSupply: DefaultMaxSupply,
		tokens:    make(map[interfaces.TokenID]*tokenState),
		holdings:  make(map[common.Address][]interfaces.TokenID),
		operators: make(map[common.Address]map[common.Address]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// New creates a registry owned by owner. The administrator starts out as the
// owner. The Initialized event is journaled like any other commit.
func New(owner common.Address, opts ...Option) (*Registry, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner must not be the zero address", interfaces.ErrInvalidAccount)
	}

	r := newEmpty(opts)
	initial := interfaces.NewInitializedEvent(owner, owner, r.maxSupply, r.metadataBase)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.commit([]interfaces.Event{initial}); err != nil {
		return nil, err
	}

	r.log.Info("Registry initialized",
		slog.String("owner", owner.Hex()),
		slog.Uint64("maxSupply", r.maxSupply))
	return r, nil
}

// execute runs a validating operation under the registry lock and commits the
// events it returns. Validation errors leave the state untouched.
func (r *Registry) execute(op string, validate func() ([]interfaces.Event, error)) error {
	r.mu.Lock()
	events, err := validate()
	if err == nil {
		err = r.commit(events)
	}
	if err != nil {
		r.mu.Unlock()
		metrics.RecordOperation(op, err)
		r.log.Debug("Registry operation rejected", "op", op, "err", err)
		return err
	}
	supply := len(r.allTokens)

	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()

	metrics.RecordOperation(op, nil)
	metrics.SetTotalSupply(supply)
	for _, ev := range events {
		r.feed.Send(ev)
	}
	return nil
}

// commit assigns sequence numbers, journals and applies events. Callers hold mu.
func (r *Registry) commit(events []interfaces.Event) error {
	for i := range events {
		events[i].Seq = r.seq + uint64(i) + 1
	}

	if r.journal != nil {
		if err := r.journal.Append(events); err != nil {
			return fmt.Errorf("journal append failed: %w", err)
		}
	}

	for _, ev := range events {
		if err := r.applyEvent(ev); err != nil {
			// Events are validated before commit; a failure here means the
			// validation and apply rules disagree.
			panic(fmt.Sprintf("registry: validated event %s #%d failed to apply: %v", ev.Kind, ev.Seq, err))
		}
	}
	r.seq += uint64(len(events))
	r.events = append(r.events, events...)
	return nil
}

// SubscribeEvents delivers every committed event to ch in commit order.
// Sends block until ch accepts the event, so subscribers should drain ch
// promptly and must not call mutating registry operations from the receiving
// goroutine while ch is full.
func (r *Registry) SubscribeEvents(ch chan<- interfaces.Event) event.Subscription {
	return r.feed.Subscribe(ch)
}

// Events returns the retained event log starting at sequence number fromSeq.
// A registry restored from a snapshot only retains events after the snapshot.
func (r *Registry) Events(fromSeq uint64) []interfaces.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []interfaces.Event
	for _, ev := range r.events {
		if ev.Seq >= fromSeq {
			out = append(out, ev)
		}
	}
	return out
}

// Seq returns the sequence number of the last committed event.
func (r *Registry) Seq() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

func (r *Registry) isOwner(caller common.Address) bool {
	return caller == r.owner
}

func (r *Registry) isOwnerOrAdmin(caller common.Address) bool {
	return caller == r.owner || caller == r.administrator
}

func (r *Registry) requireOwner(caller common.Address) error {
	if !r.isOwner(caller) {
		return fmt.Errorf("%w: %s is not the owner", interfaces.ErrNotAuthorized, caller.Hex())
	}
	return nil
}

func (r *Registry) token(id interfaces.TokenID) (*tokenState, error) {
	tok, ok := r.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnknownToken, id)
	}
	return tok, nil
}

// IsRegistryError reports whether err is one of the registry's failure reasons.
func IsRegistryError(err error) bool {
	for _, target := range []error{
		interfaces.ErrNotAuthorized,
		interfaces.ErrAlreadyMinted,
		interfaces.ErrUnknownToken,
		interfaces.ErrSupplyExceeded,
		interfaces.ErrCapReduced,
		interfaces.ErrNotHolder,
		interfaces.ErrInvalidAccount,
		interfaces.ErrInvalidApproval,
		interfaces.ErrIndexOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
