package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// Rate-limit retry schedule: 2s, 4s, 8s, then give up on this provider.
	maxRateLimitRetries = 3
	baseBackoff         = 2 * time.Second
)

// Gateway issues completions against a primary provider, retrying
// rate-limits with exponential backoff, and replays the request against a
// fallback provider when the primary is exhausted or hard-fails. It holds no
// per-call state.
type Gateway struct {
	primary  Provider
	fallback Provider // may be nil
	logger   *slog.Logger

	// sleep is replaced in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(primary, fallback Provider, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Complete runs the request through the primary provider and, if needed, the
// fallback. The returned error is always an *UpstreamProviderError on
// failure.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := g.completeWithRetry(ctx, g.primary, req)
	if err == nil {
		return resp, nil
	}
	// Context cancellation is the caller's deadline, not an upstream fault
	// worth replaying elsewhere.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, &UpstreamProviderError{Provider: g.primary.Name(), Err: err}
	}
	if g.fallback == nil {
		return nil, &UpstreamProviderError{Provider: g.primary.Name(), Err: err}
	}

	g.logger.Warn("primary provider failed, using fallback",
		"primary", g.primary.Name(), "fallback", g.fallback.Name(), "error", err)

	resp, ferr := g.completeWithRetry(ctx, g.fallback, req)
	if ferr != nil {
		return nil, &UpstreamProviderError{Provider: g.fallback.Name(), Err: ferr}
	}
	return resp, nil
}

// completeWithRetry calls one provider, retrying only rate-limit errors.
func (g *Gateway) completeWithRetry(ctx context.Context, p Provider, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return g.checkStructured(req, resp, p)
		}
		lastErr = err

		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return nil, err
		}
		if attempt == maxRateLimitRetries {
			break
		}

		delay := baseBackoff << attempt
		g.logger.Info("provider rate limited, backing off",
			"provider", p.Name(), "attempt", attempt+1, "delay", delay)
		if serr := g.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	return nil, lastErr
}

// checkStructured enforces the structured-output contract: a non-parseable
// JSON response is an upstream failure, never silently defaulted.
func (g *Gateway) checkStructured(req CompletionRequest, resp *CompletionResponse, p Provider) (*CompletionResponse, error) {
	if !req.StructuredOutput {
		return resp, nil
	}
	raw := resp.JSON
	if len(raw) == 0 {
		raw = json.RawMessage(resp.Text)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s: malformed structured response", p.Name())
	}
	resp.JSON = raw
	return resp, nil
}
