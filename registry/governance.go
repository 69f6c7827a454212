package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
)

// SetMaxSupply raises the supply cap. The cap never decreases.
func (r *Registry) SetMaxSupply(caller common.Address, maxSupply uint64) error {
	return r.execute("set_max_supply", func() ([]interfaces.Event, error) {
		if err := r.requireOwner(caller); err != nil {
			return nil, err
		}
		if maxSupply < r.maxSupply {
			return nil, fmt.Errorf("%w: %d is below current cap %d", interfaces.ErrCapReduced, maxSupply, r.maxSupply)
		}
		return []interfaces.Event{interfaces.NewMaxSupplyChangedEvent(maxSupply)}, nil
	})
}

// SetMetadataBase replaces the prefix used by TokenURI.
func (r *Registry) SetMetadataBase(caller common.Address, base string) error {
	return r.execute("set_metadata_base", func() ([]interfaces.Event, error) {
		if err := r.requireOwner(caller); err != nil {
			return nil, err
		}
		return []interfaces.Event{interfaces.NewMetadataBaseChangedEvent(base)}, nil
	})
}

// SetAdministrator replaces the administrator unconditionally.
func (r *Registry) SetAdministrator(caller, administrator common.Address) error {
	return r.execute("set_administrator", func() ([]interfaces.Event, error) {
		if err := r.requireOwner(caller); err != nil {
			return nil, err
		}
		return []interfaces.Event{interfaces.NewAdministratorChangedEvent(administrator)}, nil
	})
}

func (r *Registry) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

func (r *Registry) Administrator() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.administrator
}

func (r *Registry) MaxSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxSupply
}

func (r *Registry) MetadataBase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metadataBase
}
