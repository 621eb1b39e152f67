package providers

import (
	"errors"
	"testing"
)

func TestRegistrySelect(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{StubWebhookSecret: "whsec"})

	a, err := r.Select("")
	if err != nil {
		t.Fatalf("Select(\"\") error: %v", err)
	}
	if a.Name() != Stripe {
		t.Errorf("empty provider selected %q, want stripe", a.Name())
	}
	if _, ok := a.(*StripeAdapter); !ok {
		t.Errorf("stripe slot is %T", a)
	}

	a, err = r.Select(" Cryptomus ")
	if err != nil || a.Name() != Cryptomus {
		t.Errorf("Select(Cryptomus) = %v, %v", a, err)
	}

	if _, err := r.Select("paypal"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("Select(paypal) error = %v", err)
	}
}

func TestRegistryMockMode(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{MockPayments: true, StubWebhookSecret: "whsec"})

	a, err := r.Select(Stripe)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(*StubAdapter); !ok {
		t.Errorf("stripe slot in mock mode is %T", a)
	}
}

func TestRegistryValidateConfig(t *testing.T) {
	r := NewDefaultRegistry(RegistryConfig{})

	if err := r.ValidateConfig(Stripe, Config{"capture_method": "manual"}); err != nil {
		t.Errorf("valid stripe config rejected: %v", err)
	}
	if err := r.ValidateConfig(Stripe, Config{"capture_method": "later"}); err == nil {
		t.Error("invalid capture_method accepted")
	}
	if err := r.ValidateConfig("paypal", nil); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("unknown provider: %v", err)
	}

	names := r.Names()
	if len(names) != 7 || names[0] != Cryptomus {
		t.Errorf("Names() = %v", names)
	}
}
