// Package audithook bridges ledger lifecycle events to an external audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit service directly. Callers inject a RecorderFunc adapter at wiring
// time. The per-payment history kept by the ledger itself is separate and
// always written.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnAccountOpened      = (*Extension)(nil)
	_ plugin.OnPostingRecorded    = (*Extension)(nil)
	_ plugin.OnPostingsPurged     = (*Extension)(nil)
	_ plugin.OnAccountClosed      = (*Extension)(nil)
	_ plugin.OnPaymentCreated     = (*Extension)(nil)
	_ plugin.OnPaymentUpdated     = (*Extension)(nil)
	_ plugin.OnPaymentDeactivated = (*Extension)(nil)
	_ plugin.OnPaymentPurged      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	logger   *slog.Logger

	// nil means no restriction
	enabled    map[string]bool
	categories map[string]bool
	disabled   map[string]bool
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (e *Extension) OnAccountOpened(ctx context.Context, a *account.Account, opening *account.Posting) error {
	kv := []any{
		"owner_id", a.OwnerID.String(),
		"initial_balance", a.InitialBalance.String(),
	}
	if opening != nil {
		kv = append(kv, "opening_posting_id", opening.ID.String())
	}
	return e.record(ctx, ActionAccountOpened, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID.String(), CategoryAccount, nil, kv...)
}

// OnPostingRecorded implements plugin.OnPostingRecorded.
func (e *Extension) OnPostingRecorded(ctx context.Context, a *account.Account, p *account.Posting) error {
	return e.record(ctx, ActionPostingRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePosting, p.ID.String(), CategoryAccount, nil,
		"account_id", a.ID.String(),
		"kind", string(p.Kind),
		"amount", p.Amount.String(),
		"balance", a.CurrentBalance.String(),
	)
}

// OnPostingsPurged implements plugin.OnPostingsPurged. Wiping an account's
// history is recorded as a warning.
func (e *Extension) OnPostingsPurged(ctx context.Context, accountID id.AccountID, removed int64) error {
	return e.record(ctx, ActionPostingsPurged, SeverityWarning, OutcomeSuccess,
		ResourceAccount, accountID.String(), CategoryAccount, nil,
		"removed", removed,
	)
}

// OnAccountClosed implements plugin.OnAccountClosed.
func (e *Extension) OnAccountClosed(ctx context.Context, accountID id.AccountID) error {
	return e.record(ctx, ActionAccountClosed, SeverityWarning, OutcomeSuccess,
		ResourceAccount, accountID.String(), CategoryAccount, nil)
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (e *Extension) OnPaymentCreated(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"amount", p.Amount.String(),
		"state", string(p.State),
		"acting_user_id", actor(p.UserID),
	)
}

// OnPaymentUpdated implements plugin.OnPaymentUpdated. Updates that moved
// no audited field are not recorded.
func (e *Extension) OnPaymentUpdated(ctx context.Context, _, after *payment.Payment, changes []payment.Change) error {
	if len(changes) == 0 {
		return nil
	}
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	return e.record(ctx, ActionPaymentUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, after.ID.String(), CategoryPayment, nil,
		"fields", fields,
		"detail", payment.Describe(changes),
	)
}

// OnPaymentDeactivated implements plugin.OnPaymentDeactivated.
func (e *Extension) OnPaymentDeactivated(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentDeactivated, SeverityWarning, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"amount", p.Amount.String(),
	)
}

// OnPaymentPurged implements plugin.OnPaymentPurged.
func (e *Extension) OnPaymentPurged(ctx context.Context, paymentID id.PaymentID) error {
	return e.record(ctx, ActionPaymentPurged, SeverityCritical, OutcomeSuccess,
		ResourcePayment, paymentID.String(), CategoryPayment, nil)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func actor(userID id.UserID) string {
	if userID.IsNil() {
		return ""
	}
	return userID.String()
}

func (e *Extension) audits(action, category string) bool {
	switch {
	case e.disabled[action]:
		return false
	case e.enabled != nil && !e.enabled[action]:
		return false
	case e.categories != nil && !e.categories[category]:
		return false
	}
	return true
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if !e.audits(action, category) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
