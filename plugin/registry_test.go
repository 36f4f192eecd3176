package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/condoledger/id"
	"github.com/xraph/condoledger/payment"
)

type recordingPlugin struct {
	name    string
	created atomic.Int32
	purged  atomic.Int32
	err     error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnPaymentCreated(context.Context, *payment.Payment) error {
	p.created.Add(1)
	return p.err
}

func (p *recordingPlugin) OnPaymentPurged(context.Context, id.PaymentID) error {
	p.purged.Add(1)
	return p.err
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnPaymentCreated(ctx context.Context, _ *payment.Payment) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterDuplicate(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&recordingPlugin{name: "a"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&recordingPlugin{name: "a"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if got := r.Count(); got != 1 {
		t.Errorf("Count: got %d, want 1", got)
	}
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := quietRegistry()
	ok := &recordingPlugin{name: "ok"}
	failing := &recordingPlugin{name: "failing", err: errors.New("boom")}
	_ = r.Register(ok)
	_ = r.Register(failing)

	ctx := context.Background()
	r.EmitPaymentCreated(ctx, &payment.Payment{})
	r.EmitPaymentPurged(ctx, id.NewPaymentID())

	for _, p := range []*recordingPlugin{ok, failing} {
		if got := p.created.Load(); got != 1 {
			t.Errorf("%s created: got %d, want 1", p.name, got)
		}
		if got := p.purged.Load(); got != 1 {
			t.Errorf("%s purged: got %d, want 1", p.name, got)
		}
	}
}

func TestEmitTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	_ = r.Register(slowPlugin{})

	start := time.Now()
	r.EmitPaymentCreated(context.Background(), &payment.Payment{})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("emit took %v, want it bounded by the hook timeout", elapsed)
	}
}
