package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/xraph/condoledger/account"
	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

type fakeCounter struct{ value float64 }

func (c *fakeCounter) Inc()          { c.value++ }
func (c *fakeCounter) Add(v float64) { c.value += v }

type fakeHistogram struct{ observed []float64 }

func (h *fakeHistogram) Observe(v float64) { h.observed = append(h.observed, v) }

type fakeFactory struct {
	counters   map[string]*fakeCounter
	histograms map[string]*fakeHistogram
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		counters:   make(map[string]*fakeCounter),
		histograms: make(map[string]*fakeHistogram),
	}
}

func (f *fakeFactory) Counter(name string) Counter {
	c := &fakeCounter{}
	f.counters[name] = c
	return c
}

func (f *fakeFactory) Histogram(name string) Histogram {
	h := &fakeHistogram{}
	f.histograms[name] = h
	return h
}

func TestMetricsExtension(t *testing.T) {
	f := newFakeFactory()
	m := NewMetricsExtension(f)
	ctx := context.Background()

	a := &account.Account{ID: id.NewAccountID()}
	opening := &account.Posting{Kind: account.KindCredit, Amount: decimal.NewFromInt(500)}
	debit := &account.Posting{Kind: account.KindDebit, Amount: decimal.NewFromInt(120)}

	_ = m.OnAccountOpened(ctx, a, opening)
	_ = m.OnPostingRecorded(ctx, a, debit)
	_ = m.OnPostingsPurged(ctx, a.ID, 2)
	_ = m.OnAccountClosed(ctx, a.ID)

	p := &payment.Payment{ID: id.NewPaymentID(), Amount: decimal.RequireFromString("75.50")}
	_ = m.OnPaymentCreated(ctx, p)
	_ = m.OnPaymentUpdated(ctx, p, p, []payment.Change{{Field: "State"}, {Field: "Amount"}})
	_ = m.OnPaymentDeactivated(ctx, p)
	_ = m.OnPaymentPurged(ctx, p.ID)

	counters := map[string]float64{
		"condoledger.account.opened":         1,
		"condoledger.account.closed":         1,
		"condoledger.posting.credit":         1,
		"condoledger.posting.debit":          1,
		"condoledger.posting.purged":         2,
		"condoledger.payment.created":        1,
		"condoledger.payment.updated":        1,
		"condoledger.payment.deactivated":    1,
		"condoledger.payment.purged":         1,
		"condoledger.payment.fields_changed": 2,
	}
	for name, want := range counters {
		if got := f.counters[name].value; got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	if got := f.histograms["condoledger.posting.amount"].observed; len(got) != 2 || got[0] != 500 || got[1] != 120 {
		t.Errorf("posting amounts: got %v", got)
	}
	if got := f.histograms["condoledger.payment.amount"].observed; len(got) != 1 || got[0] != 75.5 {
		t.Errorf("payment amounts: got %v", got)
	}
}

func TestPrometheusFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory(reg)

	m := NewMetricsExtension(f)
	_ = m.OnPaymentCreated(context.Background(), &payment.Payment{Amount: decimal.NewFromInt(1000)})

	// A second extension on the same registry shares the collectors.
	again := NewMetricsExtension(f)
	_ = again.OnPaymentCreated(context.Background(), &payment.Payment{Amount: decimal.NewFromInt(10)})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	created, ok := byName["condoledger_payment_created"]
	if !ok {
		t.Fatal("condoledger_payment_created not registered")
	}
	if got := created.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("payment created: got %v, want 2", got)
	}

	amounts, ok := byName["condoledger_payment_amount"]
	if !ok {
		t.Fatal("condoledger_payment_amount not registered")
	}
	if got := amounts.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("payment amount samples: got %d, want 2", got)
	}
}

func TestMetricName(t *testing.T) {
	tests := map[string]string{
		"condoledger.payment.created": "condoledger_payment_created",
		"condoledger.payment-amount":  "condoledger_payment_amount",
		"already_prometheus":          "already_prometheus",
	}
	for in, want := range tests {
		if got := metricName(in); got != want {
			t.Errorf("metricName(%q): got %q, want %q", in, got, want)
		}
	}
}
