package interfaces

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is a registered work as held by the ledger.
type Record struct {
	ID           uint64         `json:"id"`
	Registrant   common.Address `json:"registrant"`
	Title        string         `json:"title"`
	Author       string         `json:"author"`
	ContentID    ContentID      `json:"content_id"`
	License      string         `json:"license"`
	RegisteredAt time.Time      `json:"registered_at"`
	AccessCount  uint64         `json:"access_count"`
	Active       bool           `json:"active"`
}

// RegisteredBy reports whether account created the record.
func (r Record) RegisteredBy(account string) bool {
	return SameAccount(r.Registrant.Hex(), account)
}

// FeeKind names a fee exposed by the ledger.
type FeeKind int

const (
	// RegistrationFee is paid by the registrant when creating a Record.
	RegistrationFee FeeKind = iota
	// AccessFee is paid by non-registrants to unlock a certificate.
	AccessFee
)

// Method returns the name of the ledger view returning this fee.
func (k FeeKind) Method() string {
	switch k {
	case RegistrationFee:
		return "registrationFee"
	case AccessFee:
		return "accessFee"
	default:
		return ""
	}
}

func (k FeeKind) String() string {
	switch k {
	case RegistrationFee:
		return "registration"
	case AccessFee:
		return "access"
	default:
		return "unknown"
	}
}

// FeeSchedule holds both fees in the ledger's base unit (wei).
// A zero fee means the corresponding action is free.
type FeeSchedule struct {
	RegistrationFee *big.Int  `json:"registration_fee"`
	AccessFee       *big.Int  `json:"access_fee"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// ViewerContext is the identity acting on a record. An empty Account means
// no wallet is connected.
type ViewerContext struct {
	Account string
}

// Connected reports whether a viewer identity is present.
func (v ViewerContext) Connected() bool {
	return strings.TrimSpace(v.Account) != ""
}

// SameAccount compares two hex account identifiers ignoring letter case and
// an optional 0x prefix.
func SameAccount(a, b string) bool {
	a = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(a), "0x"), "0X")
	b = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(b), "0x"), "0X")
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// LedgerCall describes a state-changing contract call by method name and
// arguments, independent of its wire encoding.
type LedgerCall struct {
	Method string
	Args   []interface{}
}

// RegisterSongCall builds registerSong(title, author, contentId, license).
func RegisterSongCall(title, author string, contentID ContentID, license string) LedgerCall {
	return LedgerCall{
		Method: "registerSong",
		Args:   []interface{}{title, author, string(contentID), license},
	}
}

// PayForAccessCall builds payForAccess(id).
func PayForAccessCall(id uint64) LedgerCall {
	return LedgerCall{
		Method: "payForAccess",
		Args:   []interface{}{new(big.Int).SetUint64(id)},
	}
}
