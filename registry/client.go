package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/music-copyright-registry/bindings/musicregistry"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = interfaces.ErrNoTransactOpts

// DefaultConfirmationTimeout bounds AwaitConfirmation unless overridden.
const DefaultConfirmationTimeout = 2 * time.Minute

// OnchainMusicRegistryClient implements the interfaces.LedgerClient interface for
// interacting with a MusicCopyrightRegistry contract deployed on a blockchain.
type OnchainMusicRegistryClient struct {
	contract *bind.BoundContract
	abi      abi.ABI
	client   bind.ContractBackend
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts

	endpoint       string
	confirmTimeout time.Duration
	gasLimits      map[string]uint64
}

// NewOnchainMusicRegistryClient creates a new client for the registry contract
// at the specified address. It requires a ContractBackend for reading from the
// blockchain and a DeployBackend for awaiting transaction receipts.
func NewOnchainMusicRegistryClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*OnchainMusicRegistryClient, error) {
	parsed, err := musicregistry.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("could not parse registry ABI: %w", err)
	}

	return &OnchainMusicRegistryClient{
		contract:       bind.NewBoundContract(address, parsed, client, client, client),
		abi:            parsed,
		client:         client,
		backend:        backend,
		address:        address,
		confirmTimeout: DefaultConfirmationTimeout,
		gasLimits:      map[string]uint64{},
	}, nil
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before using any methods that send transactions to the blockchain.
func (c *OnchainMusicRegistryClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// SetEndpoint records the RPC endpoint for connection error messages.
func (c *OnchainMusicRegistryClient) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// SetConfirmationTimeout bounds AwaitConfirmation. Zero disables the bound
// and leaves only the caller's context.
func (c *OnchainMusicRegistryClient) SetConfirmationTimeout(timeout time.Duration) {
	c.confirmTimeout = timeout
}

// SetGasLimit pins the gas limit for a contract method instead of
// estimating it. Zero restores estimation.
func (c *OnchainMusicRegistryClient) SetGasLimit(method string, limit uint64) {
	if limit == 0 {
		delete(c.gasLimits, method)
		return
	}
	c.gasLimits[method] = limit
}

// Address returns the registry contract address.
func (c *OnchainMusicRegistryClient) Address() common.Address {
	return c.address
}

// ReadFee reads the named fee from the registry contract.
func (c *OnchainMusicRegistryClient) ReadFee(ctx context.Context, kind interfaces.FeeKind) (*big.Int, error) {
	method := kind.Method()
	if method == "" {
		return nil, fmt.Errorf("unknown fee kind %d", kind)
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, c.readError(method, err)
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ReadTotalCount returns the number of songs registered in the contract.
func (c *OnchainMusicRegistryClient) ReadTotalCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getTotalSongs"); err != nil {
		return 0, c.readError("getTotalSongs", err)
	}

	total := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return toUint64("total songs", total)
}

// ReadRecord retrieves a song by id.
func (c *OnchainMusicRegistryClient) ReadRecord(ctx context.Context, id uint64) (interfaces.Record, error) {
	if id == 0 {
		return interfaces.Record{}, fmt.Errorf("%w: id 0", interfaces.ErrNotFound)
	}

	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getSong", new(big.Int).SetUint64(id))
	if err != nil {
		if _, reverted := DecodeRevert(c.abi, err); reverted {
			return interfaces.Record{}, fmt.Errorf("%w: id %d: %v", interfaces.ErrNotFound, id, err)
		}
		return interfaces.Record{}, c.readError("getSong", err)
	}

	record, err := recordFromOutputs(out)
	if err != nil {
		return interfaces.Record{}, err
	}
	if record.ID == 0 {
		return interfaces.Record{}, fmt.Errorf("%w: id %d", interfaces.ErrNotFound, id)
	}
	return record, nil
}

// ReadRecordsByRegistrant returns the ids registered by an account.
func (c *OnchainMusicRegistryClient) ReadRecordsByRegistrant(ctx context.Context, registrant common.Address) ([]uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getSongsByRegistrant", registrant); err != nil {
		return nil, c.readError("getSongsByRegistrant", err)
	}

	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		id, err := toUint64("song id", v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Signer returns the address of the configured transactor.
func (c *OnchainMusicRegistryClient) Signer() (common.Address, error) {
	if c.auth == nil {
		return common.Address{}, ErrNoTransactOpts
	}
	return c.auth.From, nil
}

// Simulate executes call as an eth_call from the given address against the
// latest block. The ledger state is not modified.
func (c *OnchainMusicRegistryClient) Simulate(ctx context.Context, call interfaces.LedgerCall, value *big.Int, from common.Address) error {
	input, err := c.abi.Pack(call.Method, call.Args...)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", call.Method, err)
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Value: value,
		Data:  input,
	}
	if _, err := c.client.CallContract(ctx, msg, nil); err != nil {
		if revertErr, ok := DecodeRevert(c.abi, err); ok {
			return revertErr
		}
		return c.readError(call.Method, err)
	}
	return nil
}

// Submit signs and sends call with value attached.
// Returns the transaction and an error if the transaction could not be sent.
func (c *OnchainMusicRegistryClient) Submit(ctx context.Context, call interfaces.LedgerCall, value *big.Int) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Value = value
	if limit, ok := c.gasLimits[call.Method]; ok {
		opts.GasLimit = limit
	}

	tx, err := c.contract.Transact(&opts, call.Method, call.Args...)
	if err != nil {
		if revertErr, ok := DecodeRevert(c.abi, err); ok {
			return nil, revertErr
		}
		if isSignerRejection(err) {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrRejected, err)
		}
		if isConnectionError(err) {
			return nil, &interfaces.ConnectionError{Endpoint: c.endpoint, Err: err}
		}
		return nil, fmt.Errorf("could not submit %s: %w", call.Method, err)
	}
	return tx, nil
}

// AwaitConfirmation waits for tx to be mined. A receipt with failed status
// is replayed at its block to recover the revert reason.
func (c *OnchainMusicRegistryClient) AwaitConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx := ctx
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s", interfaces.ErrTimeout, tx.Hash().Hex())
		}
		if isConnectionError(err) {
			return nil, &interfaces.ConnectionError{Endpoint: c.endpoint, Err: err}
		}
		return nil, fmt.Errorf("could not await tx %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, c.replayFailure(ctx, tx, receipt)
	}
	return receipt, nil
}

func (c *OnchainMusicRegistryClient) replayFailure(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) error {
	failed := &interfaces.RevertError{
		Code:   interfaces.RevertReceiptFailed,
		Reason: fmt.Sprintf("transaction %s failed", tx.Hash().Hex()),
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return failed
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err = c.client.CallContract(ctx, msg, receipt.BlockNumber)
	if revertErr, ok := DecodeRevert(c.abi, err); ok {
		return revertErr
	}
	return failed
}

func (c *OnchainMusicRegistryClient) readError(method string, err error) error {
	if isConnectionError(err) {
		return &interfaces.ConnectionError{Endpoint: c.endpoint, Err: err}
	}
	if revertErr, ok := DecodeRevert(c.abi, err); ok {
		return revertErr
	}
	return fmt.Errorf("%s call failed: %w", method, err)
}

func recordFromOutputs(out []interface{}) (interfaces.Record, error) {
	if len(out) != 9 {
		return interfaces.Record{}, fmt.Errorf("unexpected getSong output length %d", len(out))
	}

	id, err := toUint64("song id", *abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
	if err != nil {
		return interfaces.Record{}, err
	}
	timestamp, err := toUint64("timestamp", *abi.ConvertType(out[6], new(*big.Int)).(**big.Int))
	if err != nil {
		return interfaces.Record{}, err
	}
	accessCount, err := toUint64("access count", *abi.ConvertType(out[7], new(*big.Int)).(**big.Int))
	if err != nil {
		return interfaces.Record{}, err
	}

	return interfaces.Record{
		ID:           id,
		Registrant:   *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		Title:        *abi.ConvertType(out[2], new(string)).(*string),
		Author:       *abi.ConvertType(out[3], new(string)).(*string),
		ContentID:    interfaces.ContentID(*abi.ConvertType(out[4], new(string)).(*string)),
		License:      *abi.ConvertType(out[5], new(string)).(*string),
		RegisteredAt: time.Unix(int64(timestamp), 0).UTC(),
		AccessCount:  accessCount,
		Active:       *abi.ConvertType(out[8], new(bool)).(*bool),
	}, nil
}

func toUint64(what string, v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %v", what, v)
	}
	return v.Uint64(), nil
}
