package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/music-copyright-registry/bindings/musicregistry"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// Revert texts used by the in-memory ledger besides ReasonRegistrantNeedNotPay.
const (
	ReasonInsufficientRegistrationFee = "Insufficient registration fee"
	ReasonInsufficientAccessFee       = "Insufficient access fee"
	ReasonSongDoesNotExist            = "Song does not exist"
)

// LedgerOp is a single call recorded by MockRegistryClient.
type LedgerOp struct {
	Op     string
	Method string
	Value  *big.Int
	From   common.Address
}

// MockRegistryClient provides an in-memory implementation of the LedgerClient
// interface for testing purposes without requiring a blockchain connection.
// It enforces the same fee and access rules as the registry contract.
type MockRegistryClient struct {
	mutex sync.RWMutex

	address         common.Address
	registrationFee *big.Int
	accessFee       *big.Int
	songs           []interfaces.Record
	byRegistrant    map[common.Address][]uint64
	receipts        map[common.Hash]*types.Receipt
	nonce           uint64
	now             func() time.Time

	signer         *common.Address
	declineSigning bool
	feeErr         error
	readErrs       map[uint64]error
	awaitErr       error

	ops []LedgerOp
}

// NewMockRegistryClient creates a new in-memory ledger with the given fees.
// The client starts in a read-only state - call SetSigner to enable transaction operations.
func NewMockRegistryClient(registrationFee, accessFee *big.Int) *MockRegistryClient {
	return &MockRegistryClient{
		address:         common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		registrationFee: new(big.Int).Set(registrationFee),
		accessFee:       new(big.Int).Set(accessFee),
		byRegistrant:    make(map[common.Address][]uint64),
		receipts:        make(map[common.Hash]*types.Receipt),
		readErrs:        make(map[uint64]error),
		now:             time.Now,
	}
}

// SetSigner enables transaction operations signed by addr.
func (m *MockRegistryClient) SetSigner(addr common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.signer = &addr
}

// SetFees replaces both fees.
func (m *MockRegistryClient) SetFees(registrationFee, accessFee *big.Int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.registrationFee = new(big.Int).Set(registrationFee)
	m.accessFee = new(big.Int).Set(accessFee)
}

// SetActive flips a record's active flag, as an external authority would.
func (m *MockRegistryClient) SetActive(id uint64, active bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if id >= 1 && id <= uint64(len(m.songs)) {
		m.songs[id-1].Active = active
	}
}

// DeclineSigning makes Submit fail as if the signer refused.
func (m *MockRegistryClient) DeclineSigning(decline bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.declineSigning = decline
}

// FailFees makes fee reads fail with err. Nil clears the failure.
func (m *MockRegistryClient) FailFees(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.feeErr = err
}

// FailRead makes reads of a single record fail with err. Nil clears the failure.
func (m *MockRegistryClient) FailRead(id uint64, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err == nil {
		delete(m.readErrs, id)
		return
	}
	m.readErrs[id] = err
}

// FailAwait makes AwaitConfirmation fail with err. Nil clears the failure.
func (m *MockRegistryClient) FailAwait(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.awaitErr = err
}

// Seed registers a record directly, bypassing fees and signer checks.
func (m *MockRegistryClient) Seed(registrant common.Address, title, author string, contentID interfaces.ContentID, license string) uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.register(registrant, title, author, contentID, license)
}

// Ops returns the calls made so far, in order.
func (m *MockRegistryClient) Ops() []LedgerOp {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]LedgerOp(nil), m.ops...)
}

// CountOps returns how many calls of op (Read, Simulate, Submit, Await) targeted method.
// An empty method matches any.
func (m *MockRegistryClient) CountOps(op, method string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	n := 0
	for _, o := range m.ops {
		if o.Op == op && (method == "" || o.Method == method) {
			n++
		}
	}
	return n
}

func (m *MockRegistryClient) record(op, method string, value *big.Int, from common.Address) {
	var v *big.Int
	if value != nil {
		v = new(big.Int).Set(value)
	}
	m.ops = append(m.ops, LedgerOp{Op: op, Method: method, Value: v, From: from})
}

// ReadFee returns the configured fee.
func (m *MockRegistryClient) ReadFee(ctx context.Context, kind interfaces.FeeKind) (*big.Int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Read", kind.Method(), nil, common.Address{})

	if m.feeErr != nil {
		return nil, m.feeErr
	}
	switch kind {
	case interfaces.RegistrationFee:
		return new(big.Int).Set(m.registrationFee), nil
	case interfaces.AccessFee:
		return new(big.Int).Set(m.accessFee), nil
	default:
		return nil, fmt.Errorf("unknown fee kind %d", kind)
	}
}

// ReadTotalCount returns the number of records.
func (m *MockRegistryClient) ReadTotalCount(ctx context.Context) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Read", "getTotalSongs", nil, common.Address{})
	return uint64(len(m.songs)), nil
}

// ReadRecord returns a copy of the record with the given id.
func (m *MockRegistryClient) ReadRecord(ctx context.Context, id uint64) (interfaces.Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Read", "getSong", nil, common.Address{})

	if err, ok := m.readErrs[id]; ok {
		return interfaces.Record{}, err
	}
	if id == 0 || id > uint64(len(m.songs)) {
		return interfaces.Record{}, fmt.Errorf("%w: id %d", interfaces.ErrNotFound, id)
	}
	return m.songs[id-1], nil
}

// ReadRecordsByRegistrant returns the ids registered by registrant.
func (m *MockRegistryClient) ReadRecordsByRegistrant(ctx context.Context, registrant common.Address) ([]uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Read", "getSongsByRegistrant", nil, common.Address{})
	return append([]uint64(nil), m.byRegistrant[registrant]...), nil
}

// Signer returns the configured signer address.
func (m *MockRegistryClient) Signer() (common.Address, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.signer == nil {
		return common.Address{}, ErrNoTransactOpts
	}
	return *m.signer, nil
}

// Simulate checks call against the ledger rules without changing state.
func (m *MockRegistryClient) Simulate(ctx context.Context, call interfaces.LedgerCall, value *big.Int, from common.Address) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Simulate", call.Method, value, from)
	return m.check(call, value, from)
}

// Submit applies call and returns a transaction whose receipt is available
// to AwaitConfirmation.
func (m *MockRegistryClient) Submit(ctx context.Context, call interfaces.LedgerCall, value *big.Int) (*types.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.signer == nil {
		return nil, ErrNoTransactOpts
	}
	from := *m.signer
	m.record("Submit", call.Method, value, from)

	if m.declineSigning {
		return nil, fmt.Errorf("%w: signer declined %s", interfaces.ErrRejected, call.Method)
	}
	if err := m.check(call, value, from); err != nil {
		return nil, err
	}

	switch call.Method {
	case "registerSong":
		contentID := interfaces.ContentID(call.Args[2].(string))
		m.register(from, call.Args[0].(string), call.Args[1].(string), contentID, call.Args[3].(string))
	case "payForAccess":
		id := call.Args[0].(*big.Int).Uint64()
		m.songs[id-1].AccessCount++
	}

	parsed, err := musicregistry.ParsedABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(call.Method, call.Args...)
	if err != nil {
		return nil, err
	}

	m.nonce++
	var v *big.Int
	if value != nil {
		v = new(big.Int).Set(value)
	} else {
		v = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    m.nonce,
		To:       &m.address,
		Value:    v,
		GasPrice: new(big.Int),
		Data:     data,
	})
	m.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(m.nonce),
	}
	return tx, nil
}

// AwaitConfirmation returns the receipt recorded by Submit.
func (m *MockRegistryClient) AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.record("Await", "", nil, common.Address{})

	if m.awaitErr != nil {
		return nil, m.awaitErr
	}
	receipt, ok := m.receipts[tx.Hash()]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	return receipt, nil
}

func (m *MockRegistryClient) check(call interfaces.LedgerCall, value *big.Int, from common.Address) error {
	if value == nil {
		value = new(big.Int)
	}

	switch call.Method {
	case "registerSong":
		if len(call.Args) != 4 {
			return fmt.Errorf("registerSong expects 4 arguments, got %d", len(call.Args))
		}
		if value.Cmp(m.registrationFee) < 0 {
			return &interfaces.RevertError{Code: interfaces.RevertUnknown, Reason: ReasonInsufficientRegistrationFee}
		}
		return nil

	case "payForAccess":
		if len(call.Args) != 1 {
			return fmt.Errorf("payForAccess expects 1 argument, got %d", len(call.Args))
		}
		idArg, ok := call.Args[0].(*big.Int)
		if !ok || idArg.Sign() <= 0 || !idArg.IsUint64() || idArg.Uint64() > uint64(len(m.songs)) {
			return &interfaces.RevertError{Code: interfaces.RevertUnknown, Reason: ReasonSongDoesNotExist}
		}
		song := m.songs[idArg.Uint64()-1]
		if song.Registrant == from {
			return &interfaces.RevertError{Code: interfaces.RevertRegistrantExempt, Reason: ReasonRegistrantNeedNotPay}
		}
		if value.Cmp(m.accessFee) < 0 {
			return &interfaces.RevertError{Code: interfaces.RevertUnknown, Reason: ReasonInsufficientAccessFee}
		}
		return nil

	default:
		return fmt.Errorf("unsupported method %s", call.Method)
	}
}

func (m *MockRegistryClient) register(registrant common.Address, title, author string, contentID interfaces.ContentID, license string) uint64 {
	id := uint64(len(m.songs)) + 1
	m.songs = append(m.songs, interfaces.Record{
		ID:           id,
		Registrant:   registrant,
		Title:        title,
		Author:       author,
		ContentID:    contentID,
		License:      license,
		RegisteredAt: m.now().UTC().Truncate(time.Second),
		Active:       true,
	})
	m.byRegistrant[registrant] = append(m.byRegistrant[registrant], id)
	return id
}
