package registry

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

type testSong struct {
	registrant  common.Address
	title       string
	artist      string
	cid         string
	license     string
	timestamp   int64
	accessCount int64
	active      bool
}

// revertRPCError mimics the JSON-RPC error a node returns for a reverted call.
type revertRPCError struct {
	data string
}

func (e *revertRPCError) Error() string          { return "execution reverted" }
func (e *revertRPCError) ErrorData() interface{} { return e.data }

func encodeRevert(reason string) string {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	return hexutil.Encode(append(append([]byte{}, errorSelector...), packed...))
}

// fakeBackend answers registry contract calls by ABI-encoding canned data.
// Methods not overridden panic through the nil embedded interface.
type fakeBackend struct {
	bind.ContractBackend

	abi abi.ABI

	mu            sync.Mutex
	fees          map[string]*big.Int
	songs         []testSong
	callErr       error
	calls         []ethereum.CallMsg
	sent          []*types.Transaction
	receiptStatus uint64
	withhold      bool
}

func newFakeBackend(contractABI abi.ABI) *fakeBackend {
	return &fakeBackend{
		abi: contractABI,
		fees: map[string]*big.Int{
			"registrationFee": big.NewInt(1000),
			"accessFee":       big.NewInt(500),
		},
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (f *fakeBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)

	if f.callErr != nil {
		return nil, f.callErr
	}

	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "registrationFee", "accessFee":
		return method.Outputs.Pack(f.fees[method.Name])

	case "getTotalSongs":
		return method.Outputs.Pack(big.NewInt(int64(len(f.songs))))

	case "getSong":
		id := args[0].(*big.Int).Int64()
		if id < 1 || id > int64(len(f.songs)) {
			return nil, &revertRPCError{data: encodeRevert("Invalid song ID")}
		}
		s := f.songs[id-1]
		return method.Outputs.Pack(big.NewInt(id), s.registrant, s.title, s.artist, s.cid, s.license,
			big.NewInt(s.timestamp), big.NewInt(s.accessCount), s.active)

	case "getSongsByRegistrant":
		owner := args[0].(common.Address)
		ids := []*big.Int{}
		for i, s := range f.songs {
			if s.registrant == owner {
				ids = append(ids, big.NewInt(int64(i+1)))
			}
		}
		return method.Outputs.Pack(ids)

	case "payForAccess":
		id := args[0].(*big.Int).Int64()
		if id < 1 || id > int64(len(f.songs)) {
			return nil, &revertRPCError{data: encodeRevert("Song does not exist")}
		}
		if f.songs[id-1].registrant == call.From {
			return nil, &revertRPCError{data: encodeRevert(ReasonRegistrantNeedNotPay)}
		}
		value := call.Value
		if value == nil || value.Cmp(f.fees["accessFee"]) < 0 {
			return nil, &revertRPCError{data: encodeRevert("Insufficient access fee")}
		}
		return nil, nil
	}
	return nil, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withhold {
		return nil, ethereum.NotFound
	}
	for _, tx := range f.sent {
		if tx.Hash() == txHash {
			return &types.Receipt{
				Status:      f.receiptStatus,
				TxHash:      txHash,
				BlockNumber: big.NewInt(2),
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) lastCall() ethereum.CallMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}
