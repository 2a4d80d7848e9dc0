package generate

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(_ context.Context, _ Prompt) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestChainFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "openai", text: "from openai"}
	secondary := &fakeProvider{name: "gemini", text: "from gemini"}
	chain := NewChain(0, primary, secondary)

	text, provider, err := chain.Generate(context.Background(), "", Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "from openai" || provider != "openai" {
		t.Errorf("got %q from %q, want openai answer", text, provider)
	}
	if secondary.calls != 0 {
		t.Error("secondary provider should not be called when primary succeeds")
	}
}

func TestChainFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "openai", err: errors.New("rate limited")}
	secondary := &fakeProvider{name: "gemini", text: "from gemini"}
	chain := NewChain(0, primary, secondary)

	text, provider, err := chain.Generate(context.Background(), "", Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "from gemini" || provider != "gemini" {
		t.Errorf("got %q from %q, want gemini fallback", text, provider)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1", primary.calls)
	}
}

func TestChainAllFail(t *testing.T) {
	a := &fakeProvider{name: "openai", err: errors.New("down")}
	b := &fakeProvider{name: "gemini", err: errors.New("also down")}
	chain := NewChain(0, a, b)

	_, _, err := chain.Generate(context.Background(), "", Prompt{User: "q"})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("each provider should be tried once, got %d and %d", a.calls, b.calls)
	}
}

func TestChainPreferredProvider(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "from openai"}
	b := &fakeProvider{name: "gemini", text: "from gemini"}
	chain := NewChain(0, a, b)

	text, provider, err := chain.Generate(context.Background(), "gemini", Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "from gemini" || provider != "gemini" {
		t.Errorf("got %q from %q, want preferred gemini first", text, provider)
	}
	if a.calls != 0 {
		t.Error("non-preferred provider should not be called when preferred succeeds")
	}
}

func TestChainUnknownPreferredUsesConfiguredOrder(t *testing.T) {
	a := &fakeProvider{name: "openai", text: "from openai"}
	chain := NewChain(0, a)

	_, provider, err := chain.Generate(context.Background(), "claude", Prompt{User: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider != "openai" {
		t.Errorf("got provider %q, want openai", provider)
	}
}

func TestChainNoProviders(t *testing.T) {
	chain := NewChain(0)
	if _, _, err := chain.Generate(context.Background(), "", Prompt{User: "q"}); err == nil {
		t.Error("expected error with no providers")
	}
}

func TestChainTimeoutFloor(t *testing.T) {
	chain := NewChain(1*time.Second, &fakeProvider{name: "openai"})
	if chain.timeout != minTimeout {
		t.Errorf("timeout %v, want floor %v", chain.timeout, minTimeout)
	}
}
