// Package fees keeps a process-wide view of the registry's fee schedule.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.uber.org/atomic"

	"github.com/ruteri/music-copyright-registry/interfaces"
)

// Cache holds the last fee schedule fetched from the ledger. Refresh replaces
// the whole schedule at once, so readers never observe one new fee next to
// one stale fee.
type Cache struct {
	ledger   interfaces.LedgerReader
	schedule atomic.Pointer[loaded]
	lastErr  atomic.Error
	started  atomic.Uint64
	now      func() time.Time
	log      *slog.Logger
}

type loaded struct {
	seq uint64
	interfaces.FeeSchedule
}

// NewCache creates an unloaded fee cache reading from ledger.
func NewCache(ledger interfaces.LedgerReader, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		ledger: ledger,
		now:    time.Now,
		log:    log,
	}
}

// Refresh reads both fees and swaps in the new schedule. On failure the
// previous schedule, if any, stays in place. A single attempt is made.
// Of overlapping refreshes, the one started last wins.
func (c *Cache) Refresh(ctx context.Context) error {
	seq := c.started.Inc()

	registrationFee, err := c.ledger.ReadFee(ctx, interfaces.RegistrationFee)
	if err != nil {
		return c.fail(seq, interfaces.RegistrationFee, err)
	}

	accessFee, err := c.ledger.ReadFee(ctx, interfaces.AccessFee)
	if err != nil {
		return c.fail(seq, interfaces.AccessFee, err)
	}

	next := &loaded{seq: seq, FeeSchedule: interfaces.FeeSchedule{
		RegistrationFee: registrationFee,
		AccessFee:       accessFee,
		FetchedAt:       c.now(),
	}}
	for {
		cur := c.schedule.Load()
		if cur != nil && cur.seq > seq {
			c.log.Debug("Fee refresh superseded")
			return nil
		}
		if c.schedule.CompareAndSwap(cur, next) {
			break
		}
	}
	if c.started.Load() == seq {
		c.lastErr.Store(nil)
	}

	c.log.Debug("Fee schedule refreshed",
		slog.String("registrationFee", registrationFee.String()),
		slog.String("accessFee", accessFee.String()))
	return nil
}

func (c *Cache) fail(seq uint64, kind interfaces.FeeKind, err error) error {
	err = fmt.Errorf("failed to read %s fee: %w", kind, err)
	if c.started.Load() == seq {
		c.lastErr.Store(err)
	}
	c.log.Warn("Fee refresh failed", "err", err)
	return err
}

// Current returns a copy of the cached schedule and whether it was ever loaded.
// An unloaded cache returns a zero schedule with ok == false; callers must not
// read it as "every action is free".
func (c *Cache) Current() (interfaces.FeeSchedule, bool) {
	s := c.schedule.Load()
	if s == nil {
		return interfaces.FeeSchedule{}, false
	}
	return interfaces.FeeSchedule{
		RegistrationFee: new(big.Int).Set(s.RegistrationFee),
		AccessFee:       new(big.Int).Set(s.AccessFee),
		FetchedAt:       s.FetchedAt,
	}, true
}

// LastError returns the error of the most recent failed refresh, or nil if
// the last refresh succeeded.
func (c *Cache) LastError() error {
	return c.lastErr.Load()
}
