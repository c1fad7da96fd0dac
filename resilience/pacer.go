package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/llm"
)

const (
	// DefaultTokenBudget is the assumed per-window token budget when the
	// provider has not yet reported one.
	DefaultTokenBudget = 100000
	// DefaultResetWindow is the assumed budget window length.
	DefaultResetWindow = time.Minute
	// charsPerToken is the coarse size heuristic for estimating request
	// cost before the provider reports authoritative usage.
	charsPerToken = 4
)

// Pacer tracks a provider's token budget and delays calls that would
// exceed it. Each adapter instance owns its own Pacer; the only state
// shared between concurrent requests through the same adapter is guarded
// by the internal mutex.
type Pacer struct {
	mu        sync.Mutex
	budget    int
	remaining int
	resetAt   time.Time
	window    time.Duration
	logger    zerolog.Logger
}

// NewPacer creates a pacer with the default budget and window.
func NewPacer(logger zerolog.Logger) *Pacer {
	return &Pacer{
		budget:    DefaultTokenBudget,
		remaining: DefaultTokenBudget,
		window:    DefaultResetWindow,
		logger:    logger.With().Str("component", "pacer").Logger(),
	}
}

// EstimateTokens estimates the token cost of a request payload from its
// character count.
func EstimateTokens(chars int) int {
	n := chars / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// Reserve blocks until the estimated cost fits in the remaining budget,
// then optimistically decrements it. Each reservation runs inside a
// budget window: the first decrement after a reset starts a new window,
// and when the budget runs short Reserve sleeps until the window ends
// and restores the full budget first.
func (p *Pacer) Reserve(ctx context.Context, estimate int) error {
	p.mu.Lock()

	now := time.Now()
	if !p.resetAt.IsZero() && now.After(p.resetAt) {
		p.remaining = p.budget
		p.resetAt = time.Time{}
	}

	if estimate > p.remaining && !p.resetAt.IsZero() {
		wait := time.Until(p.resetAt)
		p.mu.Unlock()

		if wait > 0 {
			p.logger.Debug().
				Int("estimate", estimate).
				Dur("wait", wait).
				Msg("Token budget exhausted, pacing until reset")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		p.mu.Lock()
		p.remaining = p.budget
		p.resetAt = time.Time{}
	}

	if p.resetAt.IsZero() {
		p.resetAt = time.Now().Add(p.window)
	}
	p.remaining -= estimate
	p.mu.Unlock()
	return nil
}

// Confirm corrects the optimistic estimate with authoritative usage from
// a successful response.
func (p *Pacer) Confirm(estimate int, usage llm.Usage) {
	actual := usage.InputTokens + usage.OutputTokens
	if actual == 0 {
		return
	}
	p.mu.Lock()
	p.remaining += estimate - actual
	p.mu.Unlock()
}

// Observe updates the budget from provider-reported rate limit state,
// either from response headers after a success or from error metadata
// after an explicit rate-limit failure.
func (p *Pacer) Observe(info llm.RateInfo) {
	if !info.Known {
		return
	}
	p.mu.Lock()
	p.remaining = info.Remaining
	if info.ResetAt > 0 {
		p.resetAt = time.Unix(info.ResetAt, 0)
	} else if p.resetAt.IsZero() {
		p.resetAt = time.Now().Add(p.window)
	}
	p.mu.Unlock()
}

// Remaining reports the current remaining budget.
func (p *Pacer) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}
