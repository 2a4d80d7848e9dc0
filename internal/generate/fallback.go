package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultTimeout bounds a single generation attempt.
	DefaultTimeout = 30 * time.Second

	// minTimeout is the enforced floor for configured timeouts.
	minTimeout = 10 * time.Second
)

// Chain tries providers in order, falling back to the next on error.
// The provider that produced the answer is reported alongside the text.
type Chain struct {
	providers []Generator
	timeout   time.Duration
}

// NewChain creates a fallback chain over the given providers, tried in
// order. Timeouts below the floor are raised to it; zero selects the default.
func NewChain(timeout time.Duration, providers ...Generator) *Chain {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < minTimeout {
		timeout = minTimeout
	}
	return &Chain{providers: providers, timeout: timeout}
}

// Providers returns the names of the configured providers in chain order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate walks the chain starting from the provider named preferred
// (chain order if preferred is empty or unknown), trying each remaining
// provider once. Returns the answer text and the name of the provider
// that produced it.
func (c *Chain) Generate(ctx context.Context, preferred string, p Prompt) (string, string, error) {
	if len(c.providers) == 0 {
		return "", "", errors.New("no generation providers configured")
	}

	order := c.orderFrom(preferred)

	var errs []error
	for i, provider := range order {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := provider.Generate(attemptCtx, p)
		cancel()

		if err == nil {
			return text, provider.Name(), nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(order)-1 {
			slog.Warn("provider failed, falling back",
				"provider", provider.Name(),
				"next", order[i+1].Name(),
				"error", err)
		}
	}

	return "", "", fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// orderFrom rotates the chain so the preferred provider goes first.
func (c *Chain) orderFrom(preferred string) []Generator {
	if preferred == "" {
		return c.providers
	}
	for i, p := range c.providers {
		if p.Name() == preferred {
			order := make([]Generator, 0, len(c.providers))
			order = append(order, c.providers[i:]...)
			order = append(order, c.providers[:i]...)
			return order
		}
	}
	slog.Warn("unknown preferred provider, using configured order", "provider", preferred)
	return c.providers
}
