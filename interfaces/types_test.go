package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameAccount(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"identical", "0xabc0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001", true},
		{"case differs", "0xABC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001", true},
		{"prefix missing", "abc0000000000000000000000000000000000001", "0xABC0000000000000000000000000000000000001", true},
		{"upper prefix", "0XABC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001", true},
		{"different", "0xabc0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000002", false},
		{"empty", "", "", false},
		{"one empty", "0x", "0xabc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SameAccount(tt.a, tt.b))
		})
	}
}

func TestRecordRegisteredBy(t *testing.T) {
	registrant := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	r := Record{ID: 1, Registrant: registrant}

	assert.True(t, r.RegisteredBy("0x70997970c51812dc3a010c7d01b50e0d17dc79c8"))
	assert.True(t, r.RegisteredBy("70997970C51812DC3A010C7D01B50E0D17DC79C8"))
	assert.False(t, r.RegisteredBy("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"))
	assert.False(t, r.RegisteredBy(""))
}

func TestViewerContextConnected(t *testing.T) {
	assert.False(t, ViewerContext{}.Connected())
	assert.False(t, ViewerContext{Account: "  "}.Connected())
	assert.True(t, ViewerContext{Account: "0x01"}.Connected())
}

func TestFeeKind(t *testing.T) {
	assert.Equal(t, "registrationFee", RegistrationFee.Method())
	assert.Equal(t, "accessFee", AccessFee.Method())
	assert.Equal(t, "", FeeKind(7).Method())

	assert.Equal(t, "registration", RegistrationFee.String())
	assert.Equal(t, "access", AccessFee.String())
	assert.Equal(t, "unknown", FeeKind(7).String())
}

func TestLedgerCalls(t *testing.T) {
	call := RegisterSongCall("Song", "A", "cid1", "CC0")
	assert.Equal(t, "registerSong", call.Method)
	assert.Equal(t, []interface{}{"Song", "A", "cid1", "CC0"}, call.Args)

	call = PayForAccessCall(42)
	assert.Equal(t, "payForAccess", call.Method)
	require.Len(t, call.Args, 1)
	assert.Equal(t, 0, big.NewInt(42).Cmp(call.Args[0].(*big.Int)))
}

func TestRevertError(t *testing.T) {
	cause := errors.New("rpc error")
	err := fmt.Errorf("simulate: %w", &RevertError{Code: RevertRegistrantExempt, Reason: "Registrant does not need to pay", Err: cause})

	assert.True(t, IsRegistrantExempt(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "execution reverted: Registrant does not need to pay")

	assert.False(t, IsRegistrantExempt(&RevertError{Code: RevertUnknown, Reason: "Insufficient access fee"}))
	assert.False(t, IsRegistrantExempt(cause))
	assert.Equal(t, "execution reverted", (&RevertError{}).Error())
	assert.Equal(t, "panic", RevertPanic.String())
}

func TestPartialLoadError(t *testing.T) {
	var err error = &PartialLoadError{ID: 2, Total: 3, Err: ErrNotFound}

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "catalog partially loaded: record 2 of 3: record not found", err.Error())

	var partial *PartialLoadError
	require.ErrorAs(t, fmt.Errorf("refresh: %w", err), &partial)
	assert.Equal(t, uint64(2), partial.ID)
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{Endpoint: "http://127.0.0.1:8545", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ledger unreachable at http://127.0.0.1:8545: connection refused", err.Error())
	assert.Equal(t, "ledger unreachable: connection refused", (&ConnectionError{Err: cause}).Error())
}
