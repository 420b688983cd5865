package registry

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/music-copyright-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockLedger mocks the LedgerClient interface
type MockLedger struct {
	mock.Mock
}

// ReadFee mocks the ReadFee method
func (m *MockLedger) ReadFee(ctx context.Context, kind interfaces.FeeKind) (*big.Int, error) {
	args := m.Called(ctx, kind)
	fee, _ := args.Get(0).(*big.Int)
	return fee, args.Error(1)
}

// ReadRecord mocks the ReadRecord method
func (m *MockLedger) ReadRecord(ctx context.Context, id uint64) (interfaces.Record, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.Record), args.Error(1)
}

// ReadTotalCount mocks the ReadTotalCount method
func (m *MockLedger) ReadTotalCount(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// ReadRecordsByRegistrant mocks the ReadRecordsByRegistrant method
func (m *MockLedger) ReadRecordsByRegistrant(ctx context.Context, registrant common.Address) ([]uint64, error) {
	args := m.Called(ctx, registrant)
	ids, _ := args.Get(0).([]uint64)
	return ids, args.Error(1)
}

// Signer mocks the Signer method
func (m *MockLedger) Signer() (common.Address, error) {
	args := m.Called()
	return args.Get(0).(common.Address), args.Error(1)
}

// Simulate mocks the Simulate method
func (m *MockLedger) Simulate(ctx context.Context, call interfaces.LedgerCall, value *big.Int, from common.Address) error {
	args := m.Called(ctx, call, value, from)
	return args.Error(0)
}

// Submit mocks the Submit method
func (m *MockLedger) Submit(ctx context.Context, call interfaces.LedgerCall, value *big.Int) (*types.Transaction, error) {
	args := m.Called(ctx, call, value)
	tx, _ := args.Get(0).(*types.Transaction)
	return tx, args.Error(1)
}

// AwaitConfirmation mocks the AwaitConfirmation method
func (m *MockLedger) AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}
