// Package catalog maintains a local, whole-value view of every record held by
// the registry contract.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/music-copyright-registry/interfaces"
)

// MaxRecords bounds the total count a refresh will enumerate.
const MaxRecords = 1 << 20

// ErrTooManyRecords is returned when the ledger reports more than MaxRecords.
var ErrTooManyRecords = errors.New("total count exceeds catalog limit")

type snapshot struct {
	seq      uint64
	records  []interfaces.Record // newest first
	byID     map[uint64]int
	loadedAt time.Time
}

// Catalog is the materialized view of all registered works. RefreshAll
// rebuilds it from the ledger by enumerating ids 1..total; a failed refresh
// leaves the previous snapshot queryable.
type Catalog struct {
	ledger  interfaces.LedgerReader
	current atomic.Pointer[snapshot]
	lastErr atomic.Error
	started atomic.Uint64
	now     func() time.Time
	log     *slog.Logger
}

// New creates an empty catalog reading from ledger.
func New(ledger interfaces.LedgerReader, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		ledger: ledger,
		now:    time.Now,
		log:    log,
	}
}

// RefreshAll reads the total count and then every record in id order. If any
// read fails the refresh fails with *interfaces.PartialLoadError and the
// previous snapshot is kept. When refreshes overlap, the one started last
// wins even if an earlier one finishes after it.
func (c *Catalog) RefreshAll(ctx context.Context) error {
	start := c.now()
	seq := c.started.Inc()

	total, err := c.ledger.ReadTotalCount(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read total count: %w", err)
		c.log.Warn("Catalog refresh failed", "err", err)
		return c.fail(seq, err)
	}
	if total > MaxRecords {
		c.log.Warn("Catalog refresh failed", slog.Uint64("total", total), "err", ErrTooManyRecords)
		return c.fail(seq, &interfaces.PartialLoadError{ID: MaxRecords + 1, Total: total, Err: ErrTooManyRecords})
	}

	records := make([]interfaces.Record, total)
	for id := uint64(1); id <= total; id++ {
		record, err := c.ledger.ReadRecord(ctx, id)
		if err != nil {
			c.log.Warn("Catalog refresh failed",
				slog.Uint64("id", id),
				slog.Uint64("total", total),
				"err", err)
			return c.fail(seq, &interfaces.PartialLoadError{ID: id, Total: total, Err: err})
		}
		// stored newest first
		records[total-id] = record
	}

	byID := make(map[uint64]int, len(records))
	for i, r := range records {
		byID[r.ID] = i
	}

	if !c.swap(&snapshot{seq: seq, records: records, byID: byID, loadedAt: c.now()}) {
		c.log.Debug("Catalog refresh superseded", slog.Uint64("total", total))
		return nil
	}
	if c.started.Load() == seq {
		c.lastErr.Store(nil)
	}

	c.log.Debug("Catalog refreshed",
		slog.Uint64("total", total),
		slog.Duration("duration", c.now().Sub(start)))
	return nil
}

// swap installs next unless a later refresh already installed its snapshot.
func (c *Catalog) swap(next *snapshot) bool {
	for {
		cur := c.current.Load()
		if cur != nil && cur.seq > next.seq {
			return false
		}
		if c.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// fail records err unless a later refresh has started since.
func (c *Catalog) fail(seq uint64, err error) error {
	if c.started.Load() == seq {
		c.lastErr.Store(err)
	}
	return err
}

// Records returns the last successfully loaded records, newest first, and
// whether any refresh has succeeded yet.
func (c *Catalog) Records() ([]interfaces.Record, bool) {
	s := c.current.Load()
	if s == nil {
		return nil, false
	}
	return append([]interfaces.Record(nil), s.records...), true
}

// Lookup returns a record from the last snapshot.
func (c *Catalog) Lookup(id uint64) (interfaces.Record, bool) {
	s := c.current.Load()
	if s == nil {
		return interfaces.Record{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return interfaces.Record{}, false
	}
	return s.records[i], true
}

// FilterByRegistrant returns the records of the last snapshot registered by
// account, newest first. It does not query the ledger.
func (c *Catalog) FilterByRegistrant(account string) []interfaces.Record {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	var out []interfaces.Record
	for _, r := range s.records {
		if r.RegisteredBy(account) {
			out = append(out, r)
		}
	}
	return out
}

// LoadedAt returns when the current snapshot was built.
func (c *Catalog) LoadedAt() (time.Time, bool) {
	s := c.current.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.loadedAt, true
}

// LastError returns the error of the most recent failed refresh, or nil if
// the last refresh succeeded.
func (c *Catalog) LastError() error {
	return c.lastErr.Load()
}
