package intent

import (
	"testing"

	"cardpresent/models"

	"github.com/shopspring/decimal"
)

func validParams() models.PaymentIntentParameters {
	return models.PaymentIntentParameters{
		Amount:             decimal.RequireFromString("19.99"),
		Currency:           "USD",
		PaymentMethods:     []models.PaymentMethod{models.PaymentMethodCardPresent},
		ReceiptDescription: "In-person payment for order #42",
		Metadata:           map[string]string{models.MetadataKeyOrderID: "42"},
	}
}

func TestBuild_ConvertsAmountAndFee(t *testing.T) {
	wire := Build(validParams())
	if wire == nil {
		t.Fatal("expected wire parameters")
	}
	if wire.Amount != 1999 {
		t.Fatalf("expected amount 1999, got %d", wire.Amount)
	}
	if wire.ApplicationFee != 199 {
		t.Fatalf("expected application fee 199, got %d", wire.ApplicationFee)
	}
	if wire.Currency != "usd" {
		t.Fatalf("expected lower-case currency, got %q", wire.Currency)
	}
	if len(wire.PaymentMethodTypes) != 1 || wire.PaymentMethodTypes[0] != "card_present" {
		t.Fatalf("unexpected payment method types %v", wire.PaymentMethodTypes)
	}
	if wire.ReceiptDescription != "In-person payment for order #42" {
		t.Fatalf("receipt description not passed through: %q", wire.ReceiptDescription)
	}
	if wire.Metadata[models.MetadataKeyOrderID] != "42" {
		t.Fatalf("metadata not passed through: %v", wire.Metadata)
	}
}

func TestBuild_AmountTable(t *testing.T) {
	tests := []struct {
		amount string
		minor  uint64
		fee    uint64
	}{
		{"0.50", 50, 5},
		{"1", 100, 10},
		{"10.01", 1001, 100},
		{"123.45", 12345, 1234},
		{"0", 0, 0},
	}
	for _, tt := range tests {
		p := validParams()
		p.Amount = decimal.RequireFromString(tt.amount)
		wire := Build(p)
		if wire == nil {
			t.Fatalf("expected wire parameters for %s", tt.amount)
		}
		if wire.Amount != tt.minor || wire.ApplicationFee != tt.fee {
			t.Fatalf("amount %s: got (%d, %d), want (%d, %d)", tt.amount, wire.Amount, wire.ApplicationFee, tt.minor, tt.fee)
		}
		if ApplicationFee(wire.Amount) != wire.ApplicationFee {
			t.Fatalf("ApplicationFee(%d) disagrees with Build", wire.Amount)
		}
	}
}

func TestBuild_MissingMandatoryFields(t *testing.T) {
	noCurrency := validParams()
	noCurrency.Currency = ""
	if Build(noCurrency) != nil {
		t.Fatal("expected nil for empty currency")
	}

	blankCurrency := validParams()
	blankCurrency.Currency = "   "
	if Build(blankCurrency) != nil {
		t.Fatal("expected nil for blank currency")
	}

	noMethods := validParams()
	noMethods.PaymentMethods = nil
	if Build(noMethods) != nil {
		t.Fatal("expected nil for empty payment methods")
	}

	negative := validParams()
	negative.Amount = decimal.RequireFromString("-1")
	if Build(negative) != nil {
		t.Fatal("expected nil for negative amount")
	}
}

func TestBuild_StatementDescriptor(t *testing.T) {
	empty := ""
	named := "COFFEE SHOP"

	tests := []struct {
		name       string
		descriptor *string
		want       *string
	}{
		{name: "nil", descriptor: nil, want: nil},
		{name: "empty", descriptor: &empty, want: nil},
		{name: "set", descriptor: &named, want: &named},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			p.StatementDescriptor = tt.descriptor
			wire := Build(p)
			if tt.want == nil {
				if wire.StatementDescriptor != nil {
					t.Fatalf("expected no statement descriptor, got %q", *wire.StatementDescriptor)
				}
				return
			}
			if wire.StatementDescriptor == nil || *wire.StatementDescriptor != *tt.want {
				t.Fatalf("expected descriptor %q, got %v", *tt.want, wire.StatementDescriptor)
			}
		})
	}
}

func TestBuild_ReceiptEmailAndMetadataCopy(t *testing.T) {
	email := "buyer@example.com"
	p := validParams()
	p.ReceiptEmail = &email

	wire := Build(p)
	if wire.ReceiptEmail == nil || *wire.ReceiptEmail != email {
		t.Fatalf("expected receipt email %q, got %v", email, wire.ReceiptEmail)
	}

	p.Metadata[models.MetadataKeyOrderID] = "changed"
	if wire.Metadata[models.MetadataKeyOrderID] != "42" {
		t.Fatal("expected wire metadata to be independent of the input map")
	}
}
