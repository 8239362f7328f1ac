package configuration

import (
	"errors"
	"reflect"
	"testing"

	"cardpresent/models"
)

func TestMakeConfiguration_SupportedCombinations(t *testing.T) {
	tests := []struct {
		name       string
		country    string
		stripe     bool
		canada     bool
		methods    []models.PaymentMethod
		currencies []string
		gateways   []string
	}{
		{
			name:       "us with stripe",
			country:    "US",
			stripe:     true,
			methods:    []models.PaymentMethod{models.PaymentMethodCardPresent},
			currencies: []string{"USD"},
			gateways:   []string{models.GatewayPrimary, models.GatewayStripe},
		},
		{
			name:       "us without stripe",
			country:    "US",
			methods:    []models.PaymentMethod{models.PaymentMethodCardPresent},
			currencies: []string{"USD"},
			gateways:   []string{models.GatewayPrimary},
		},
		{
			name:       "us ignores canada flag",
			country:    "us",
			canada:     true,
			methods:    []models.PaymentMethod{models.PaymentMethodCardPresent},
			currencies: []string{"USD"},
			gateways:   []string{models.GatewayPrimary},
		},
		{
			name:       "canada enabled",
			country:    "CA",
			canada:     true,
			methods:    []models.PaymentMethod{models.PaymentMethodCardPresent, models.PaymentMethodInteracPresent},
			currencies: []string{"CAD"},
			gateways:   []string{models.GatewayPrimary},
		},
		{
			name:       "canada enabled with stripe",
			country:    " ca ",
			stripe:     true,
			canada:     true,
			methods:    []models.PaymentMethod{models.PaymentMethodCardPresent, models.PaymentMethodInteracPresent},
			currencies: []string{"CAD"},
			gateways:   []string{models.GatewayPrimary},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := MakeConfiguration(tt.country, tt.stripe, tt.canada)
			if err != nil {
				t.Fatalf("expected configuration, got error %v", err)
			}
			if !reflect.DeepEqual(cfg.PaymentMethods, tt.methods) {
				t.Fatalf("payment methods = %v, want %v", cfg.PaymentMethods, tt.methods)
			}
			if !reflect.DeepEqual(cfg.Currencies, tt.currencies) {
				t.Fatalf("currencies = %v, want %v", cfg.Currencies, tt.currencies)
			}
			if !reflect.DeepEqual(cfg.PaymentGateways, tt.gateways) {
				t.Fatalf("gateways = %v, want %v", cfg.PaymentGateways, tt.gateways)
			}
			if !cfg.HasGateway(models.GatewayPrimary) {
				t.Fatal("expected primary gateway to always be present")
			}
			if len(cfg.SupportedReaders) == 0 {
				t.Fatal("expected at least one supported reader")
			}
		})
	}
}

func TestMakeConfiguration_UnsupportedCombinations(t *testing.T) {
	tests := []struct {
		country string
		stripe  bool
		canada  bool
	}{
		{country: "FR"},
		{country: "FR", stripe: true, canada: true},
		{country: "CA"},
		{country: "CA", stripe: true},
		{country: ""},
		{country: "GB", canada: true},
	}

	for _, tt := range tests {
		cfg, err := MakeConfiguration(tt.country, tt.stripe, tt.canada)
		if !errors.Is(err, ErrConfigurationMissing) {
			t.Fatalf("MakeConfiguration(%q, %t, %t) error = %v, want ErrConfigurationMissing", tt.country, tt.stripe, tt.canada, err)
		}
		if len(cfg.PaymentGateways) != 0 || len(cfg.Currencies) != 0 {
			t.Fatalf("expected zero configuration for %q, got %+v", tt.country, cfg)
		}
	}
}

func TestResolver_MemoizesPerTuple(t *testing.T) {
	r := NewResolver()

	first, err := r.Resolve("US", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve("us", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected memoized configuration, got %+v and %+v", first, second)
	}
	if len(r.cache) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(r.cache))
	}

	withoutStripe, _ := r.Resolve("US", false, false)
	if reflect.DeepEqual(first.PaymentGateways, withoutStripe.PaymentGateways) {
		t.Fatal("expected distinct entries for different flags")
	}

	if _, err := r.Resolve("FR", false, false); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected cached error, got %v", err)
	}
	if _, err := r.Resolve("FR", false, false); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected cached error on second call, got %v", err)
	}
}

func TestResolver_ReturnsIndependentCopies(t *testing.T) {
	r := NewResolver()

	first, err := r.Resolve("US", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Currencies[0] = "EUR"
	first.PaymentGateways[0] = "tampered"
	first.PaymentMethods[0] = models.PaymentMethodInteracPresent
	first.SupportedReaders[0] = models.ReaderTypeOther

	second, err := r.Resolve("US", true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Currencies[0] != "USD" || second.PaymentGateways[0] != models.GatewayPrimary {
		t.Fatalf("cached configuration was mutated through a caller: %+v", second)
	}
	if second.PaymentMethods[0] != models.PaymentMethodCardPresent || second.SupportedReaders[0] != models.ReaderTypeChipper2X {
		t.Fatalf("cached configuration was mutated through a caller: %+v", second)
	}
}
