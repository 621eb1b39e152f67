package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps provider names to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
	primary  string
}

// RegistryConfig carries the secrets the built-in adapters need.
type RegistryConfig struct {
	Stripe            StripeConfig
	StubWebhookSecret string
	MockPayments      bool
}

// NewRegistry returns an empty registry whose fallback is primary.
func NewRegistry(primary string) *Registry {
	return &Registry{adapters: make(map[string]Adapter), primary: primary}
}

// NewDefaultRegistry wires Stripe plus the stub providers.
func NewDefaultRegistry(cfg RegistryConfig) *Registry {
	r := NewRegistry(Stripe)
	if cfg.MockPayments {
		r.Register(NewMockStripe(cfg.StubWebhookSecret))
	} else {
		r.Register(NewStripeAdapter(cfg.Stripe))
	}
	for _, name := range []string{Cryptomus, Nuvei, PayKings, HighRiskPay, PaymentCloud, SecurionPay} {
		r.Register(NewStubAdapter(name, cfg.StubWebhookSecret))
	}
	return r
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(a Adapter) {
	r.adapters[strings.ToLower(a.Name())] = a
}

// Primary is the provider used when a merchant has none configured.
func (r *Registry) Primary() string {
	return r.primary
}

// Select returns the adapter for provider, falling back to the primary
// adapter when provider is empty.
func (r *Registry) Select(provider string) (Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		name = r.primary
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return a, nil
}

// ValidateConfig checks a merchant's provider choice and its config.
func (r *Registry) ValidateConfig(provider string, cfg Config) error {
	a, err := r.Select(provider)
	if err != nil {
		return err
	}
	return a.ValidateConfig(cfg)
}

// Names lists the registered providers in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
