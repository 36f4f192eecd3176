// Package observability provides a metrics extension for the ledger that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnAccountOpened      = (*MetricsExtension)(nil)
	_ plugin.OnPostingRecorded    = (*MetricsExtension)(nil)
	_ plugin.OnPostingsPurged     = (*MetricsExtension)(nil)
	_ plugin.OnAccountClosed      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCreated     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentDeactivated = (*MetricsExtension)(nil)
	_ plugin.OnPaymentPurged      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a ledger plugin to track account and payment activity.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsOpened Counter
	AccountsClosed Counter
	Credits        Counter
	Debits         Counter
	PostingAmount  Histogram
	PostingsPurged Counter

	// Payment metrics
	PaymentsCreated     Counter
	PaymentsUpdated     Counter
	PaymentsDeactivated Counter
	PaymentsPurged      Counter
	PaymentAmount       Histogram
	FieldsChanged       Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsOpened: factory.Counter("condoledger.account.opened"),
		AccountsClosed: factory.Counter("condoledger.account.closed"),
		Credits:        factory.Counter("condoledger.posting.credit"),
		Debits:         factory.Counter("condoledger.posting.debit"),
		PostingAmount:  factory.Histogram("condoledger.posting.amount"),
		PostingsPurged: factory.Counter("condoledger.posting.purged"),

		// Payment metrics
		PaymentsCreated:     factory.Counter("condoledger.payment.created"),
		PaymentsUpdated:     factory.Counter("condoledger.payment.updated"),
		PaymentsDeactivated: factory.Counter("condoledger.payment.deactivated"),
		PaymentsPurged:      factory.Counter("condoledger.payment.purged"),
		PaymentAmount:       factory.Histogram("condoledger.payment.amount"),
		FieldsChanged:       factory.Counter("condoledger.payment.fields_changed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened. The opening posting is
// counted like any other posting.
func (m *MetricsExtension) OnAccountOpened(ctx context.Context, a *account.Account, opening *account.Posting) error {
	m.AccountsOpened.Inc()
	if opening != nil {
		return m.OnPostingRecorded(ctx, a, opening)
	}
	return nil
}

// OnPostingRecorded implements plugin.OnPostingRecorded.
func (m *MetricsExtension) OnPostingRecorded(_ context.Context, _ *account.Account, p *account.Posting) error {
	if p.Kind == account.KindDebit {
		m.Debits.Inc()
	} else {
		m.Credits.Inc()
	}
	m.PostingAmount.Observe(p.Amount.InexactFloat64())
	return nil
}

// OnPostingsPurged implements plugin.OnPostingsPurged.
func (m *MetricsExtension) OnPostingsPurged(_ context.Context, _ id.AccountID, removed int64) error {
	m.PostingsPurged.Add(float64(removed))
	return nil
}

// OnAccountClosed implements plugin.OnAccountClosed.
func (m *MetricsExtension) OnAccountClosed(_ context.Context, _ id.AccountID) error {
	m.AccountsClosed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentCreated implements plugin.OnPaymentCreated.
func (m *MetricsExtension) OnPaymentCreated(_ context.Context, p *payment.Payment) error {
	m.PaymentsCreated.Inc()
	m.PaymentAmount.Observe(p.Amount.InexactFloat64())
	return nil
}

// OnPaymentUpdated implements plugin.OnPaymentUpdated.
func (m *MetricsExtension) OnPaymentUpdated(_ context.Context, _, _ *payment.Payment, changes []payment.Change) error {
	m.PaymentsUpdated.Inc()
	m.FieldsChanged.Add(float64(len(changes)))
	return nil
}

// OnPaymentDeactivated implements plugin.OnPaymentDeactivated.
func (m *MetricsExtension) OnPaymentDeactivated(_ context.Context, _ *payment.Payment) error {
	m.PaymentsDeactivated.Inc()
	return nil
}

// OnPaymentPurged implements plugin.OnPaymentPurged.
func (m *MetricsExtension) OnPaymentPurged(_ context.Context, _ id.PaymentID) error {
	m.PaymentsPurged.Inc()
	return nil
}
