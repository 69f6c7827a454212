package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/mock"

	"github.com/ruteri/utility-registry/interfaces"
)

// MockRegistry mocks the TokenRegistry interface
type MockRegistry struct {
	mock.Mock
}

var _ interfaces.TokenRegistry = (*MockRegistry)(nil)

func (m *MockRegistry) Mint(caller, to common.Address, id interfaces.TokenID) error {
	args := m.Called(caller, to, id)
	return args.Error(0)
}

func (m *MockRegistry) Transfer(caller, from, to common.Address, id interfaces.TokenID) error {
	args := m.Called(caller, from, to, id)
	return args.Error(0)
}

func (m *MockRegistry) Approve(caller, to common.Address, id interfaces.TokenID) error {
	args := m.Called(caller, to, id)
	return args.Error(0)
}

func (m *MockRegistry) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	args := m.Called(caller, operator, approved)
	return args.Error(0)
}

func (m *MockRegistry) HolderOf(id interfaces.TokenID) (common.Address, error) {
	args := m.Called(id)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockRegistry) TokenURI(id interfaces.TokenID) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) Exists(id interfaces.TokenID) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *MockRegistry) GetApproved(id interfaces.TokenID) (common.Address, error) {
	args := m.Called(id)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockRegistry) IsApprovedForAll(holder, operator common.Address) bool {
	args := m.Called(holder, operator)
	return args.Bool(0)
}

func (m *MockRegistry) BalanceOf(holder common.Address) (uint64, error) {
	args := m.Called(holder)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRegistry) TotalSupply() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockRegistry) TokenByIndex(index uint64) (interfaces.TokenID, error) {
	args := m.Called(index)
	return args.Get(0).(interfaces.TokenID), args.Error(1)
}

func (m *MockRegistry) TokenOfHolderByIndex(holder common.Address, index uint64) (interfaces.TokenID, error) {
	args := m.Called(holder, index)
	return args.Get(0).(interfaces.TokenID), args.Error(1)
}

func (m *MockRegistry) MintWithUtilityBinding(caller, to common.Address, id interfaces.TokenID, metadata string) error {
	args := m.Called(caller, to, id, metadata)
	return args.Error(0)
}

func (m *MockRegistry) SetUtilityBinding(caller common.Address, id interfaces.TokenID, bound common.Address, metadata string) error {
	args := m.Called(caller, id, bound, metadata)
	return args.Error(0)
}

func (m *MockRegistry) HasUtility(id interfaces.TokenID) bool {
	args := m.Called(id)
	return args.Bool(0)
}

func (m *MockRegistry) BoundAddress(id interfaces.TokenID) common.Address {
	args := m.Called(id)
	return args.Get(0).(common.Address)
}

func (m *MockRegistry) Metadata(id interfaces.TokenID) string {
	args := m.Called(id)
	return args.String(0)
}

func (m *MockRegistry) Token(id interfaces.TokenID) (interfaces.TokenView, error) {
	args := m.Called(id)
	return args.Get(0).(interfaces.TokenView), args.Error(1)
}

func (m *MockRegistry) SetMaxSupply(caller common.Address, maxSupply uint64) error {
	args := m.Called(caller, maxSupply)
	return args.Error(0)
}

func (m *MockRegistry) SetMetadataBase(caller common.Address, base string) error {
	args := m.Called(caller, base)
	return args.Error(0)
}

func (m *MockRegistry) SetAdministrator(caller, administrator common.Address) error {
	args := m.Called(caller, administrator)
	return args.Error(0)
}

func (m *MockRegistry) Owner() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *MockRegistry) Administrator() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *MockRegistry) MaxSupply() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockRegistry) MetadataBase() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRegistry) Events(fromSeq uint64) []interfaces.Event {
	args := m.Called(fromSeq)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]interfaces.Event)
}

func (m *MockRegistry) SubscribeEvents(ch chan<- interfaces.Event) event.Subscription {
	args := m.Called(ch)
	return args.Get(0).(event.Subscription)
}

func (m *MockRegistry) Snapshot() interfaces.RegistrySnapshot {
	args := m.Called()
	return args.Get(0).(interfaces.RegistrySnapshot)
}
