package registration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/music-copyright-registry/access"
	"github.com/ruteri/music-copyright-registry/catalog"
	"github.com/ruteri/music-copyright-registry/fees"
	"github.com/ruteri/music-copyright-registry/interfaces"
	"github.com/ruteri/music-copyright-registry/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	accountA = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	accountB = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// minimal MP3 frame header preceded by an ID3 tag
var audioPayload = append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingCatalog struct {
	*catalog.Catalog
	refreshes int
}

func (c *countingCatalog) RefreshAll(ctx context.Context) error {
	c.refreshes++
	return c.Catalog.RefreshAll(ctx)
}

type unloadedFees struct{}

func (unloadedFees) Current() (interfaces.FeeSchedule, bool) {
	return interfaces.FeeSchedule{}, false
}

type memStore struct {
	blobs map[interfaces.ContentID][]byte
}

func (s *memStore) Upload(_ context.Context, data []byte) (interfaces.ContentID, error) {
	id, err := interfaces.ComputeContentID(data)
	if err != nil {
		return "", err
	}
	if s.blobs == nil {
		s.blobs = make(map[interfaces.ContentID][]byte)
	}
	s.blobs[id] = data
	return id, nil
}

func (s *memStore) Fetch(_ context.Context, id interfaces.ContentID) ([]byte, error) {
	data, ok := s.blobs[id]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return data, nil
}

func nonReadOps(ops []registry.LedgerOp) []registry.LedgerOp {
	var out []registry.LedgerOp
	for _, op := range ops {
		if op.Op != "Read" {
			out = append(out, op)
		}
	}
	return out
}

func TestRegisterThenUnlock(t *testing.T) {
	ctx := context.Background()
	ledger := registry.NewMockRegistryClient(big.NewInt(1000), big.NewInt(500))

	feeCache := fees.NewCache(ledger, testLogger())
	require.NoError(t, feeCache.Refresh(ctx))
	records := &countingCatalog{Catalog: catalog.New(ledger, testLogger())}

	ledger.SetSigner(accountA)
	flow := NewFlow(ledger, feeCache, records, nil, testLogger())
	result, err := flow.Register(ctx, Submission{Title: "Song", Author: "A", ContentID: "cid1", License: "CC0"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), result.ID)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 1, records.refreshes)
	require.NotNil(t, result.Record)
	assert.Equal(t, accountA, result.Record.Registrant)
	assert.Equal(t, "CC0", result.Record.License)

	ops := nonReadOps(ledger.Ops())
	require.Len(t, ops, 2)
	assert.Equal(t, "Submit", ops[0].Op)
	assert.Equal(t, "registerSong", ops[0].Method)
	assert.Equal(t, 0, big.NewInt(1000).Cmp(ops[0].Value))
	assert.Equal(t, "Await", ops[1].Op)

	// viewer B pays for access
	ledger.SetSigner(accountB)
	gate := access.NewGate(ledger, feeCache, records, testLogger())
	out, err := gate.Run(ctx, interfaces.ViewerContext{Account: accountB.Hex()}, *result.Record, access.AlwaysConfirm)
	require.NoError(t, err)
	assert.Equal(t, access.Unlocked, out.State)
	assert.Equal(t, 2, records.refreshes)
	assert.Equal(t, uint64(1), out.Record.AccessCount)

	ops = nonReadOps(ledger.Ops())[2:]
	require.Len(t, ops, 3)
	assert.Equal(t, "Simulate", ops[0].Op)
	assert.Equal(t, "payForAccess", ops[0].Method)
	assert.Equal(t, accountB, ops[0].From)
	assert.Equal(t, 0, big.NewInt(500).Cmp(ops[0].Value))
	assert.Equal(t, "Submit", ops[1].Op)
	assert.Equal(t, "payForAccess", ops[1].Method)
	assert.Equal(t, 0, big.NewInt(500).Cmp(ops[1].Value))
	assert.Equal(t, "Await", ops[2].Op)
}

func TestRegister_FeeNotLoaded(t *testing.T) {
	ledger := new(registry.MockLedger)
	flow := NewFlow(ledger, unloadedFees{}, &countingCatalog{}, nil, testLogger())

	_, err := flow.Register(context.Background(), Submission{Title: "Song", Author: "A", ContentID: "cid1"})
	require.ErrorIs(t, err, interfaces.ErrFeeNotLoaded)

	ledger.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Simulate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_MissingFields(t *testing.T) {
	ledger := registry.NewMockRegistryClient(big.NewInt(1000), big.NewInt(500))
	feeCache := fees.NewCache(ledger, testLogger())
	require.NoError(t, feeCache.Refresh(context.Background()))
	flow := NewFlow(ledger, feeCache, catalog.New(ledger, testLogger()), nil, testLogger())

	for _, s := range []Submission{
		{Author: "A", ContentID: "cid1"},
		{Title: "  ", Author: "A", ContentID: "cid1"},
		{Title: "Song", ContentID: "cid1"},
		{Title: "Song", Author: "A"},
	} {
		_, err := flow.Register(context.Background(), s)
		assert.ErrorIs(t, err, ErrMissingField)
	}
	assert.Equal(t, 0, ledger.CountOps("Submit", ""))
}

func TestRegister_DefaultLicense(t *testing.T) {
	ledger := new(registry.MockLedger)
	tx := types.NewTx(&types.LegacyTx{Nonce: 1})

	ledger.On("Submit", mock.Anything, interfaces.RegisterSongCall("Song", "A", "cid1", DefaultLicense), big.NewInt(1000)).Return(tx, nil)
	ledger.On("AwaitConfirmation", mock.Anything, tx).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)
	ledger.On("Signer").Return(accountA, nil)
	ledger.On("ReadRecordsByRegistrant", mock.Anything, accountA).Return([]uint64{2, 9, 5}, nil)

	fixed := fixedFees{registration: big.NewInt(1000)}
	result, err := NewFlow(ledger, fixed, nopCatalog{}, nil, testLogger()).
		Register(context.Background(), Submission{Title: " Song ", Author: "A", ContentID: "cid1"})
	require.NoError(t, err)

	assert.Equal(t, uint64(9), result.ID)
	assert.Equal(t, tx.Hash(), result.TxHash)
	assert.Nil(t, result.Record)
	ledger.AssertExpectations(t)
}

func TestRegister_SubmitRevert(t *testing.T) {
	ledger := registry.NewMockRegistryClient(big.NewInt(1000), big.NewInt(500))
	ledger.SetSigner(accountA)
	records := &countingCatalog{Catalog: catalog.New(ledger, testLogger())}

	// cached fee is stale and too low
	flow := NewFlow(ledger, fixedFees{registration: big.NewInt(10)}, records, nil, testLogger())
	_, err := flow.Register(context.Background(), Submission{Title: "Song", Author: "A", ContentID: "cid1"})

	var revertErr *interfaces.RevertError
	require.ErrorAs(t, err, &revertErr)
	assert.Equal(t, registry.ReasonInsufficientRegistrationFee, revertErr.Reason)
	assert.Equal(t, 0, records.refreshes)
	assert.Equal(t, 0, ledger.CountOps("Await", ""))
}

func TestRegister_RefreshFailureKeepsResult(t *testing.T) {
	ledger := registry.NewMockRegistryClient(big.NewInt(0), big.NewInt(0))
	ledger.SetSigner(accountA)

	flow := NewFlow(ledger, fixedFees{registration: big.NewInt(0)}, nopCatalog{err: errors.New("boom")}, nil, testLogger())
	result, err := flow.Register(context.Background(), Submission{Title: "Song", Author: "A", ContentID: "cid1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.ID)
	assert.Contains(t, result.Warning, "catalog refresh failed")
}

func TestRegisterFile(t *testing.T) {
	ctx := context.Background()
	ledger := registry.NewMockRegistryClient(big.NewInt(1000), big.NewInt(500))
	ledger.SetSigner(accountA)
	feeCache := fees.NewCache(ledger, testLogger())
	require.NoError(t, feeCache.Refresh(ctx))
	store := &memStore{}

	flow := NewFlow(ledger, feeCache, catalog.New(ledger, testLogger()), store, testLogger())
	result, err := flow.RegisterFile(ctx, audioPayload, Submission{Title: "Song", Author: "A"})
	require.NoError(t, err)
	require.NotNil(t, result.Record)

	expected, err := interfaces.ComputeContentID(audioPayload)
	require.NoError(t, err)
	assert.Equal(t, expected, result.Record.ContentID)
	assert.Equal(t, DefaultLicense, result.Record.License)

	stored, err := store.Fetch(ctx, expected)
	require.NoError(t, err)
	assert.Equal(t, audioPayload, stored)
}

func TestRegisterFile_RejectsNonAudio(t *testing.T) {
	ledger := registry.NewMockRegistryClient(big.NewInt(1000), big.NewInt(500))
	ledger.SetSigner(accountA)
	store := &memStore{}

	flow := NewFlow(ledger, fixedFees{registration: big.NewInt(1000)}, nopCatalog{}, store, testLogger())
	_, err := flow.RegisterFile(context.Background(), []byte("%PDF-1.4 not a song"), Submission{Title: "Song", Author: "A"})
	require.ErrorIs(t, err, interfaces.ErrNotAudio)
	assert.Empty(t, store.blobs)
	assert.Equal(t, 0, ledger.CountOps("Submit", ""))
}

func TestRegisterFile_NoUploadWithoutFees(t *testing.T) {
	store := &memStore{}
	flow := NewFlow(new(registry.MockLedger), unloadedFees{}, nopCatalog{}, store, testLogger())

	_, err := flow.RegisterFile(context.Background(), audioPayload, Submission{Title: "Song", Author: "A"})
	require.ErrorIs(t, err, interfaces.ErrFeeNotLoaded)
	assert.Empty(t, store.blobs)
}

type fixedFees struct {
	registration *big.Int
}

func (f fixedFees) Current() (interfaces.FeeSchedule, bool) {
	return interfaces.FeeSchedule{RegistrationFee: f.registration, AccessFee: new(big.Int)}, true
}

type nopCatalog struct {
	err error
}

func (c nopCatalog) RefreshAll(context.Context) error        { return c.err }
func (c nopCatalog) Lookup(uint64) (interfaces.Record, bool) { return interfaces.Record{}, false }
