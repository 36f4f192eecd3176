package extension

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	ledger "github.com/xraph/condoledger"
	"github.com/xraph/condoledger/payment"
	"github.com/xraph/condoledger/store/memory"
	"github.com/xraph/condoledger/store/sqlite"
	"github.com/xraph/condoledger/types"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	got := e.mergeWithDefaults(Config{CurrencyCode: "EUR"})

	want := DefaultConfig()
	want.CurrencyCode = "EUR"
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeWithDefaults: got %+v, want %+v", got, want)
	}
}

func TestMergeConfigurations(t *testing.T) {
	e := New()
	yaml := Config{CurrencyCode: "USD", DecimalSeparator: ".", ThousandsSeparator: ",", MildOverdueDays: ref(10)}
	prog := Config{CurrencyCode: "EUR", DisableMigrate: true, ModerateOverdueDays: ref(60), DefaultPageSize: 50, GroveDatabase: "ledger"}

	got := e.mergeConfigurations(yaml, prog)

	if got.CurrencyCode != "USD" {
		t.Errorf("CurrencyCode: got %q, want %q", got.CurrencyCode, "USD")
	}
	if !got.DisableMigrate {
		t.Error("DisableMigrate: programmatic flag should win")
	}
	if th := got.Thresholds(); th.Mild != 10 || th.Moderate != 60 {
		t.Errorf("thresholds: got %d/%d, want 10/60", th.Mild, th.Moderate)
	}
	if got.GroveDatabase != "ledger" {
		t.Errorf("GroveDatabase: got %q, want %q", got.GroveDatabase, "ledger")
	}
	if got.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize: got %d, want 50", got.DefaultPageSize)
	}
	if got.FractionDigits == nil || *got.FractionDigits != 2 {
		t.Errorf("FractionDigits: got %v, want 2", got.FractionDigits)
	}
}

func TestMergeKeepsExplicitZero(t *testing.T) {
	e := New()
	yaml := Config{FractionDigits: ref[int32](0), MildOverdueDays: ref(0)}
	prog := Config{FractionDigits: ref[int32](2), MildOverdueDays: ref(7)}

	got := e.mergeConfigurations(yaml, prog)

	loc, err := got.Locale()
	if err != nil {
		t.Fatalf("Locale: %v", err)
	}
	if loc.FractionDigits != 0 {
		t.Errorf("FractionDigits: got %d, want 0", loc.FractionDigits)
	}
	if th := got.Thresholds(); th.Mild != 0 {
		t.Errorf("MildOverdueDays: got %d, want 0", th.Mild)
	}

	got = e.mergeWithDefaults(Config{FractionDigits: ref[int32](0)})
	if *got.FractionDigits != 0 {
		t.Errorf("mergeWithDefaults FractionDigits: got %d, want 0", *got.FractionDigits)
	}
}

func TestWithFractionDigitsZero(t *testing.T) {
	e := New(WithFractionDigits(0))
	e.config = e.mergeWithDefaults(e.config)

	opts, err := e.buildLedgerOpts()
	if err != nil {
		t.Fatalf("buildLedgerOpts: %v", err)
	}
	l := ledger.New(memory.New(), opts...)
	if got := l.Locale().FractionDigits; got != 0 {
		t.Errorf("FractionDigits: got %d, want 0", got)
	}
}

func TestConfigLocale(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    types.Locale
		wantErr bool
	}{
		{"Default", DefaultConfig(), types.DefaultLocale(), false},
		{
			"English",
			Config{CurrencyCode: "USD", DecimalSeparator: ".", ThousandsSeparator: ",", FractionDigits: ref[int32](2)},
			types.Locale{DecimalSeparator: '.', ThousandsSeparator: ',', CurrencyCode: "USD", FractionDigits: 2},
			false,
		},
		{
			"No grouping",
			Config{DecimalSeparator: ","},
			types.Locale{DecimalSeparator: ',', FractionDigits: 2},
			false,
		},
		{"Multi-character separator", Config{DecimalSeparator: ",,"}, types.Locale{}, true},
		{"Same separators", Config{DecimalSeparator: ",", ThousandsSeparator: ","}, types.Locale{}, true},
		{"Missing decimal", Config{ThousandsSeparator: "."}, types.Locale{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Locale()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Locale: got error %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Locale: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildLedgerOpts(t *testing.T) {
	passThrough := payment.Thresholds{Mild: 5, Moderate: 9}
	e := New(
		WithCurrencyCode("USD"),
		WithOverdueDays(7, 21),
		WithLedgerOption(ledger.WithThresholds(passThrough)),
	)
	e.config = e.mergeWithDefaults(e.config)

	opts, err := e.buildLedgerOpts()
	if err != nil {
		t.Fatalf("buildLedgerOpts: %v", err)
	}
	l := ledger.New(memory.New(), opts...)

	if got := l.Locale().CurrencyCode; got != "USD" {
		t.Errorf("CurrencyCode: got %q, want %q", got, "USD")
	}
	if got := l.Thresholds(); got != passThrough {
		t.Errorf("Thresholds: got %+v, want %+v", got, passThrough)
	}
}

func TestBuildLedgerOptsRejectsBadLocale(t *testing.T) {
	e := New(WithConfig(Config{DecimalSeparator: "ab"}))
	if _, err := e.buildLedgerOpts(); err == nil {
		t.Error("buildLedgerOpts: expected an error for a two-character separator")
	}
}

func TestWithGroveDatabase(t *testing.T) {
	e := New(WithGroveDatabase("ledger"))
	if !e.useGrove || e.config.GroveDatabase != "ledger" {
		t.Errorf("WithGroveDatabase: got useGrove=%v name=%q", e.useGrove, e.config.GroveDatabase)
	}
}

func TestStoreForDB(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	got, err := storeForDB(s.DB())
	if err != nil {
		t.Fatalf("storeForDB: %v", err)
	}
	if _, ok := got.(*sqlite.Store); !ok {
		t.Errorf("storeForDB: got %T, want *sqlite.Store", got)
	}
	if err := got.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

type fakeConfigSource struct {
	set  map[string]Config
	errs map[string]error
}

func (f fakeConfigSource) IsSet(key string) bool {
	_, ok := f.set[key]
	_, failed := f.errs[key]
	return ok || failed
}

func (f fakeConfigSource) Bind(key string, target any) error {
	if err, ok := f.errs[key]; ok {
		return err
	}
	*target.(*Config) = f.set[key]
	return nil
}

func TestLoadFileConfig(t *testing.T) {
	bindErr := errors.New("fraction_digits: cannot parse \"two\"")
	src := fakeConfigSource{
		set:  map[string]Config{"condoledger": {CurrencyCode: "USD"}},
		errs: map[string]error{"extensions.condoledger": bindErr},
	}

	cfg, key, failures := loadFileConfig(src)
	if key != "condoledger" || cfg.CurrencyCode != "USD" {
		t.Errorf("loadFileConfig: got key %q currency %q, want condoledger/USD", key, cfg.CurrencyCode)
	}
	if len(failures) != 1 || failures[0].key != "extensions.condoledger" || !errors.Is(failures[0].err, bindErr) {
		t.Fatalf("failures: got %+v, want the bind error for extensions.condoledger", failures)
	}

	_, key, _ = loadFileConfig(fakeConfigSource{})
	if key != "" {
		t.Errorf("loadFileConfig: got key %q for an empty source", key)
	}
}
