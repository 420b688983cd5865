// Package registration submits new works to the registry contract.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// DefaultLicense is used when a submission carries no license.
const DefaultLicense = "All Rights Reserved"

var (
	// ErrMissingField is returned when a required submission field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrNoContentStore is returned by RegisterFile when no store is configured.
	ErrNoContentStore = errors.New("no content store configured")
)

// Submission holds the fields of a new registration.
type Submission struct {
	Title     string
	Author    string
	ContentID interfaces.ContentID
	License   string
}

// Normalize trims fields, fills in the default license and checks that
// every required field is set.
func (s Submission) Normalize() (Submission, error) {
	out, err := s.normalizeMetadata()
	if err != nil {
		return Submission{}, err
	}
	if out.ContentID == "" {
		return Submission{}, fmt.Errorf("%w: content id", ErrMissingField)
	}
	return out, nil
}

func (s Submission) normalizeMetadata() (Submission, error) {
	out := Submission{
		Title:     strings.TrimSpace(s.Title),
		Author:    strings.TrimSpace(s.Author),
		ContentID: interfaces.ContentID(strings.TrimSpace(string(s.ContentID))),
		License:   strings.TrimSpace(s.License),
	}
	switch {
	case out.Title == "":
		return Submission{}, fmt.Errorf("%w: title", ErrMissingField)
	case out.Author == "":
		return Submission{}, fmt.Errorf("%w: author", ErrMissingField)
	}
	if out.License == "" {
		out.License = DefaultLicense
	}
	return out, nil
}

// Result describes a confirmed registration. ID is zero when the new id
// could not be resolved; Warning then says why.
type Result struct {
	ID      uint64             `json:"id"`
	Record  *interfaces.Record `json:"record,omitempty"`
	TxHash  common.Hash        `json:"tx_hash"`
	Fee     *big.Int           `json:"fee"`
	Warning string             `json:"warning,omitempty"`
}

// Flow registers works: optional upload, fee lookup, submission,
// confirmation and catalog refresh. It keeps no state between calls.
type Flow struct {
	ledger  interfaces.LedgerClient
	fees    interfaces.FeeSource
	catalog interfaces.RecordSource
	store   interfaces.ContentStore
	log     *slog.Logger
}

// NewFlow creates a registration flow. store may be nil when callers only
// register content ids obtained elsewhere.
func NewFlow(ledger interfaces.LedgerClient, fees interfaces.FeeSource, catalog interfaces.RecordSource, store interfaces.ContentStore, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		ledger:  ledger,
		fees:    fees,
		catalog: catalog,
		store:   store,
		log:     log,
	}
}

// Upload stores an audio payload and returns its content identifier.
func (f *Flow) Upload(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	if f.store == nil {
		return "", ErrNoContentStore
	}
	if !interfaces.IsAudio(data) {
		return "", interfaces.ErrNotAudio
	}

	id, err := f.store.Upload(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}
	f.log.Info("Content uploaded", slog.String("cid", id.String()), slog.Int("size", len(data)))
	return id, nil
}

// RegisterFile uploads data and registers it with the given metadata.
// The ContentID of s is ignored.
func (f *Flow) RegisterFile(ctx context.Context, data []byte, s Submission) (*Result, error) {
	if _, err := s.normalizeMetadata(); err != nil {
		return nil, err
	}
	if _, loaded := f.fees.Current(); !loaded {
		return nil, interfaces.ErrFeeNotLoaded
	}

	id, err := f.Upload(ctx, data)
	if err != nil {
		return nil, err
	}
	s.ContentID = id
	return f.Register(ctx, s)
}

// Register submits registerSong with the cached registration fee, waits for
// inclusion and refreshes the catalog. Nothing is retained on failure.
func (f *Flow) Register(ctx context.Context, s Submission) (*Result, error) {
	s, err := s.Normalize()
	if err != nil {
		return nil, err
	}

	schedule, loaded := f.fees.Current()
	if !loaded || schedule.RegistrationFee == nil {
		return nil, interfaces.ErrFeeNotLoaded
	}
	fee := new(big.Int).Set(schedule.RegistrationFee)

	call := interfaces.RegisterSongCall(s.Title, s.Author, s.ContentID, s.License)
	tx, err := f.ledger.Submit(ctx, call, fee)
	if err != nil {
		return nil, fmt.Errorf("failed to submit registration: %w", err)
	}
	f.log.Info("Registration submitted",
		slog.String("tx", tx.Hash().Hex()),
		slog.String("title", s.Title),
		slog.String("cid", s.ContentID.String()),
		slog.String("fee", fee.String()))

	if _, err := f.ledger.AwaitConfirmation(ctx, tx); err != nil {
		return nil, fmt.Errorf("registration not confirmed: %w", err)
	}

	result := &Result{TxHash: tx.Hash(), Fee: fee}
	var warnings []string

	id, err := f.resolveID(ctx)
	if err != nil {
		warnings = append(warnings, "could not resolve new record id")
		f.log.Warn("Failed to resolve registered id", "tx", tx.Hash().Hex(), "err", err)
	}
	result.ID = id

	if err := f.catalog.RefreshAll(ctx); err != nil {
		warnings = append(warnings, "catalog refresh failed")
		f.log.Warn("Catalog refresh after registration failed", "err", err)
	} else if id != 0 {
		if record, ok := f.catalog.Lookup(id); ok {
			result.Record = &record
		}
	}
	result.Warning = strings.Join(warnings, "; ")

	f.log.Info("Registration confirmed", slog.Uint64("id", id), slog.String("tx", tx.Hash().Hex()))
	return result, nil
}

// resolveID returns the highest id registered by the signing account.
func (f *Flow) resolveID(ctx context.Context) (uint64, error) {
	signer, err := f.ledger.Signer()
	if err != nil {
		return 0, err
	}
	ids, err := f.ledger.ReadRecordsByRegistrant(ctx, signer)
	if err != nil {
		return 0, err
	}
	var highest uint64
	for _, id := range ids {
		if id > highest {
			highest = id
		}
	}
	if highest == 0 {
		return 0, fmt.Errorf("%w: no records for %s", interfaces.ErrNotFound, signer.Hex())
	}
	return highest, nil
}
