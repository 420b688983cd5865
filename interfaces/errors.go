package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record id is outside the ledger's id range.
	ErrNotFound = errors.New("record not found")

	// ErrFeeNotLoaded is returned when an action needs a fee that has not
	// been fetched from the ledger yet.
	ErrFeeNotLoaded = errors.New("fee schedule not loaded")

	// ErrNotConnected is returned when a gated action has no viewer identity.
	ErrNotConnected = errors.New("no connected account")

	// ErrRejected is returned when the user or signer declines an action.
	ErrRejected = errors.New("rejected by user")

	// ErrTimeout is returned when a transaction is not confirmed in time.
	ErrTimeout = errors.New("timed out waiting for confirmation")

	// ErrNoTransactOpts is returned when a transaction is attempted without
	// first setting transaction options.
	ErrNoTransactOpts = errors.New("no authorized transactor available")

	// ErrInvalidRecord is returned for records that cannot be acted on, such
	// as id zero or a zero registrant address.
	ErrInvalidRecord = errors.New("invalid record")
)

// ConnectionError reports that the read endpoint could not be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("ledger unreachable: %v", e.Err)
	}
	return fmt.Sprintf("ledger unreachable at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RevertCode classifies why the ledger rejected a call.
type RevertCode int

const (
	// RevertUnknown covers reasons with no dedicated code.
	RevertUnknown RevertCode = iota
	// RevertRegistrantExempt means the caller is the record's registrant and
	// must not pay for access.
	RevertRegistrantExempt
	// RevertPanic means the contract hit a Solidity panic (assert, overflow,
	// out of bounds access).
	RevertPanic
	// RevertReceiptFailed means the transaction was mined with failed status
	// and no reason could be recovered.
	RevertReceiptFailed
)

func (c RevertCode) String() string {
	switch c {
	case RevertRegistrantExempt:
		return "registrant-exempt"
	case RevertPanic:
		return "panic"
	case RevertReceiptFailed:
		return "receipt-failed"
	default:
		return "unknown"
	}
}

// RevertError reports that the ledger rejected a call.
// Reason carries the ledger's text verbatim when one was available.
type RevertError struct {
	Code   RevertCode
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// IsRegistrantExempt reports whether err is a revert caused by the
// registrant trying to pay for its own record.
func IsRegistrantExempt(err error) bool {
	var revertErr *RevertError
	return errors.As(err, &revertErr) && revertErr.Code == RevertRegistrantExempt
}

// PartialLoadError reports that the catalog could not read every record.
type PartialLoadError struct {
	ID    uint64
	Total uint64
	Err   error
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("catalog partially loaded: record %d of %d: %v", e.ID, e.Total, e.Err)
}

func (e *PartialLoadError) Unwrap() error {
	return e.Err
}
