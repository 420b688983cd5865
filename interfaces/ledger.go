package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LedgerReader queries the registry contract over a read-only connection.
// None of its methods require a signer.
type LedgerReader interface {
	// ReadFee returns the current amount of the named fee.
	ReadFee(ctx context.Context, kind FeeKind) (*big.Int, error)

	// ReadRecord returns the record with the given id.
	// Fails with ErrNotFound when id is outside [1, total].
	ReadRecord(ctx context.Context, id uint64) (Record, error)

	// ReadTotalCount returns the number of registered records.
	ReadTotalCount(ctx context.Context) (uint64, error)

	// ReadRecordsByRegistrant returns the ids registered by an account, in
	// registration order.
	ReadRecordsByRegistrant(ctx context.Context, registrant common.Address) ([]uint64, error)
}

// LedgerWriter sends state-changing calls. All methods except Signer
// require transaction options to be configured.
type LedgerWriter interface {
	// Signer returns the address that signs submitted transactions.
	Signer() (common.Address, error)

	// Simulate dry-runs call from the given address without changing state.
	// A rejected call fails with *RevertError.
	Simulate(ctx context.Context, call LedgerCall, value *big.Int, from common.Address) error

	// Submit signs and sends call carrying value.
	Submit(ctx context.Context, call LedgerCall, value *big.Int) (*types.Transaction, error)

	// AwaitConfirmation blocks until tx is included.
	// Fails with ErrTimeout or *RevertError.
	AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// LedgerClient is the full typed gateway to the registry contract.
type LedgerClient interface {
	LedgerReader
	LedgerWriter
}

// RecordSource is the catalog view consumed by workflows that need to
// reconcile local state after a transaction commits.
type RecordSource interface {
	RefreshAll(ctx context.Context) error
	Lookup(id uint64) (Record, bool)
}

// FeeSource is the fee view consumed by workflows.
type FeeSource interface {
	// Current returns the cached schedule and whether it has been loaded.
	Current() (FeeSchedule, bool)
}
