package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures
var ErrCircuitOpen = errors.New("circuit breaker is open")

// DefaultTimeout bounds a guarded generation call
const DefaultTimeout = 30 * time.Second

// GuardConfig configures Guarded
type GuardConfig struct {
	// Timeout bounds each call (default 30s)
	Timeout time.Duration
	// MaxFailures consecutive failures open the circuit (default 3)
	MaxFailures uint32
	// OpenFor is how long the circuit stays open before probing again (default 60s)
	OpenFor time.Duration
}

// Guarded wraps a TextGenerator with a hard timeout and a circuit breaker so
// an unreachable provider fails fast instead of stalling every message.
type Guarded struct {
	next    TextGenerator
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuarded wraps next
func NewGuarded(next TextGenerator, cfg GuardConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "text-generation",
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}

	return &Guarded{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

// Model returns the wrapped model name
func (g *Guarded) Model() string {
	return g.next.Model()
}

// Generate runs the wrapped generator under the timeout and breaker
func (g *Guarded) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state: closed, half-open or open
func (g *Guarded) State() string {
	return g.breaker.State().String()
}
