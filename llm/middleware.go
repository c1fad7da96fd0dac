package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/schema"
)

// LoggingMiddleware wraps an adapter so every generation call is logged
// with its duration, stop reason, and token usage.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next Adapter) Adapter {
		return &loggingAdapter{
			next: next,
			logger: logger.With().
				Str("component", "llm").
				Str("provider", string(next.Provider())).
				Logger(),
		}
	}
}

type loggingAdapter struct {
	next   Adapter
	logger zerolog.Logger
}

func (a *loggingAdapter) Provider() Provider { return a.next.Provider() }

func (a *loggingAdapter) Dialect() schema.Dialect { return a.next.Dialect() }

func (a *loggingAdapter) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := a.next.Generate(ctx, req)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Generation failed")
		return nil, err
	}
	a.logger.Debug().
		Dur("duration", time.Since(start)).
		Str("stop_reason", string(resp.StopReason)).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Generation completed")
	return resp, nil
}
