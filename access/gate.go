package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// Confirmer asks the viewer to approve paying fee for record.
// Returning false declines the payment.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, record interfaces.Record, fee *big.Int) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, record interfaces.Record, fee *big.Int) (bool, error)

func (f ConfirmFunc) ConfirmPayment(ctx context.Context, record interfaces.Record, fee *big.Int) (bool, error) {
	return f(ctx, record, fee)
}

// AlwaysConfirm approves every payment.
var AlwaysConfirm = ConfirmFunc(func(context.Context, interfaces.Record, *big.Int) (bool, error) {
	return true, nil
})

// Decision is the outcome of the local access rules, before any ledger call.
type Decision struct {
	Free   bool
	Reason string
	Fee    *big.Int
}

// Outcome is the terminal result of Run. Record and Certificate are set only
// when access was granted; Reason only when it failed.
type Outcome struct {
	State       State
	Record      *interfaces.Record
	Certificate *Certificate
	TxHash      common.Hash
	Reason      string
	Warning     string
	Err         error
	Transitions []State
}

// Gate runs access attempts. It holds no per-attempt state, so one Gate can
// serve concurrent viewers.
type Gate struct {
	ledger  interfaces.LedgerWriter
	fees    interfaces.FeeSource
	catalog interfaces.RecordSource
	certs   CertificateConfig

	observer func(id uint64, from, to State)
	log      *slog.Logger
}

// NewGate creates a gate paying through ledger with fees read from fees.
// catalog is refreshed after every confirmed payment.
func NewGate(ledger interfaces.LedgerWriter, fees interfaces.FeeSource, catalog interfaces.RecordSource, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		ledger:  ledger,
		fees:    fees,
		catalog: catalog,
		log:     log,
	}
}

// SetCertificateConfig sets the links placed on issued certificates.
func (g *Gate) SetCertificateConfig(cfg CertificateConfig) {
	g.certs = cfg
}

// Certificate builds the certificate view of record with the configured links.
func (g *Gate) Certificate(record interfaces.Record) *Certificate {
	return NewCertificate(g.certs, record)
}

// SetObserver registers fn to be called on every state transition.
func (g *Gate) SetObserver(fn func(id uint64, from, to State)) {
	g.observer = fn
}

// Decide applies the local access rules for viewer on record. It never calls
// the ledger. A non-free decision carries the access fee to pay.
func (g *Gate) Decide(viewer interfaces.ViewerContext, record interfaces.Record) (Decision, error) {
	if !viewer.Connected() {
		return Decision{}, interfaces.ErrNotConnected
	}
	if record.ID == 0 || record.Registrant == (common.Address{}) {
		return Decision{}, fmt.Errorf("%w: id %d", interfaces.ErrInvalidRecord, record.ID)
	}
	if record.RegisteredBy(viewer.Account) {
		return Decision{Free: true, Reason: "viewer is the registrant"}, nil
	}

	schedule, loaded := g.fees.Current()
	if !loaded || schedule.AccessFee == nil {
		return Decision{}, interfaces.ErrFeeNotLoaded
	}
	if schedule.AccessFee.Sign() == 0 {
		return Decision{Free: true, Reason: "access fee is zero"}, nil
	}
	return Decision{Fee: new(big.Int).Set(schedule.AccessFee)}, nil
}

// Run takes viewer through a complete access attempt on record. The returned
// Outcome is always non-nil and in a final state; the error is non-nil
// exactly when that state is Failed.
func (g *Gate) Run(ctx context.Context, viewer interfaces.ViewerContext, record interfaces.Record, confirm Confirmer) (*Outcome, error) {
	a := &attempt{gate: g, record: record, state: Idle}
	a.to(CheckingIdentity)

	decision, err := g.Decide(viewer, record)
	if err != nil {
		return a.fail(err)
	}
	if decision.Free {
		g.log.Debug("Free access granted", slog.Uint64("id", record.ID), slog.String("reason", decision.Reason))
		return a.grant(FreeAccess, record, ""), nil
	}

	a.to(NeedsPayment)
	fee := decision.Fee

	a.to(AwaitingUserConfirmation)
	if confirm == nil {
		return a.fail(fmt.Errorf("%w: no confirmation available", interfaces.ErrRejected))
	}
	approved, err := confirm.ConfirmPayment(ctx, record, new(big.Int).Set(fee))
	if err != nil {
		return a.fail(err)
	}
	if !approved {
		return a.fail(fmt.Errorf("%w: payment declined", interfaces.ErrRejected))
	}

	a.to(Simulating)
	signer, err := g.ledger.Signer()
	if err != nil {
		return a.fail(err)
	}
	if record.RegisteredBy(signer.Hex()) {
		g.log.Warn("Signing account is the registrant, granting free access",
			slog.Uint64("id", record.ID),
			slog.String("viewer", viewer.Account),
			slog.String("signer", signer.Hex()))
		return a.grant(FreeAccess, record, "signing account is the registrant"), nil
	}

	call := interfaces.PayForAccessCall(record.ID)
	if err := g.ledger.Simulate(ctx, call, fee, signer); err != nil {
		if interfaces.IsRegistrantExempt(err) {
			g.log.Warn("Ledger reports signer as registrant, granting free access",
				slog.Uint64("id", record.ID),
				slog.String("signer", signer.Hex()))
			return a.grant(FreeAccess, record, "signing account is the registrant"), nil
		}
		return a.fail(err)
	}

	// Submit covers both signing and broadcast.
	a.to(AwaitingSignature)
	tx, err := g.ledger.Submit(ctx, call, fee)
	if err != nil {
		return a.fail(err)
	}
	a.to(Submitting)
	g.log.Info("Access payment submitted",
		slog.Uint64("id", record.ID),
		slog.String("tx", tx.Hash().Hex()),
		slog.String("fee", fee.String()))

	a.to(Confirming)
	if _, err := g.ledger.AwaitConfirmation(ctx, tx); err != nil {
		return a.fail(err)
	}

	// Payment is final from here on; a failed refresh must not send the
	// viewer back to pay again.
	unlocked := record
	warning := ""
	if err := g.catalog.RefreshAll(ctx); err != nil {
		warning = "catalog refresh failed after payment"
		g.log.Warn("Catalog refresh after access payment failed",
			slog.Uint64("id", record.ID),
			"err", err)
	} else if updated, ok := g.catalog.Lookup(record.ID); ok {
		unlocked = updated
	}

	out := a.grant(Unlocked, unlocked, warning)
	out.TxHash = tx.Hash()
	return out, nil
}

type attempt struct {
	gate        *Gate
	record      interfaces.Record
	state       State
	transitions []State
}

func (a *attempt) to(next State) {
	prev := a.state
	a.state = next
	a.transitions = append(a.transitions, next)

	a.gate.log.Debug("Access state transition",
		slog.Uint64("id", a.record.ID),
		slog.String("from", prev.String()),
		slog.String("to", next.String()))
	if a.gate.observer != nil {
		a.gate.observer(a.record.ID, prev, next)
	}
}

func (a *attempt) grant(state State, record interfaces.Record, warning string) *Outcome {
	a.to(state)
	r := record
	return &Outcome{
		State:       state,
		Record:      &r,
		Certificate: a.gate.Certificate(record),
		Warning:     warning,
		Transitions: a.transitions,
	}
}

func (a *attempt) fail(err error) (*Outcome, error) {
	a.to(Failed)
	a.gate.log.Info("Access attempt failed",
		slog.Uint64("id", a.record.ID),
		slog.String("reason", Describe(err)),
		"err", err)
	return &Outcome{
		State:       Failed,
		Reason:      Describe(err),
		Err:         err,
		Transitions: a.transitions,
	}, err
}

// Describe turns an access failure into a message suitable for the viewer.
func Describe(err error) string {
	var (
		revertErr *interfaces.RevertError
		connErr   *interfaces.ConnectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, interfaces.ErrNotConnected):
		return "connect a wallet to view this certificate"
	case errors.Is(err, interfaces.ErrInvalidRecord):
		return "record is invalid"
	case errors.Is(err, interfaces.ErrFeeNotLoaded):
		return "access fee is not loaded yet, try again shortly"
	case errors.Is(err, interfaces.ErrRejected):
		return "payment was declined"
	case errors.Is(err, interfaces.ErrNoTransactOpts):
		return "no signing account available"
	case errors.Is(err, interfaces.ErrTimeout):
		return "payment was not confirmed in time and may still be included"
	case errors.As(err, &revertErr):
		if revertErr.Reason == "" {
			return "ledger rejected the payment"
		}
		return "ledger rejected the payment: " + revertErr.Reason
	case errors.As(err, &connErr):
		return "ledger is unreachable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "access attempt was cancelled"
	default:
		return err.Error()
	}
}
