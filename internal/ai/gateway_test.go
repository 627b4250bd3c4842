package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubProvider scripts a sequence of responses, one per call.
type stubProvider struct {
	mu      sync.Mutex
	name    string
	results []stubResult
	calls   int
}

type stubResult struct {
	resp *CompletionResponse
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		return nil, errors.New("stub exhausted")
	}
	return s.results[i].resp, s.results[i].err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// newTestGateway replaces the backoff sleep with a recorder.
func newTestGateway(primary, fallback Provider) (*Gateway, *[]time.Duration) {
	g := NewGateway(primary, fallback, nil)
	var delays []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return g, &delays
}

func rateLimited() stubResult {
	return stubResult{err: &RateLimitError{Provider: "stub"}}
}

func success(text string) stubResult {
	return stubResult{resp: &CompletionResponse{Text: text}}
}

func TestCompleteSucceedsFirstTry(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{success("hello")}}
	g, delays := newTestGateway(primary, nil)

	resp, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "hello" {
		t.Errorf("text = %q", resp.Text)
	}
	if len(*delays) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", *delays)
	}
}

// Rate-limited twice then succeeds: result returned, waits were 2s then 4s.
func TestCompleteRetriesRateLimitWithBackoff(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		rateLimited(), rateLimited(), success("third time"),
	}}
	g, delays := newTestGateway(primary, nil)

	resp, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "third time" {
		t.Errorf("text = %q", resp.Text)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

// Four consecutive rate-limits exhaust the primary and trigger the fallback.
func TestCompleteExhaustedRateLimitUsesFallback(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		rateLimited(), rateLimited(), rateLimited(), rateLimited(),
	}}
	fallback := &stubProvider{name: "fallback", results: []stubResult{success("rescued")}}
	g, delays := newTestGateway(primary, fallback)

	resp, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "rescued" {
		t.Errorf("text = %q", resp.Text)
	}
	if primary.callCount() != 4 {
		t.Errorf("primary calls = %d, want 4", primary.callCount())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("delays = %v, want %v", *delays, want)
	}
}

func TestCompleteExhaustedWithoutFallbackFails(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		rateLimited(), rateLimited(), rateLimited(), rateLimited(),
	}}
	g, _ := newTestGateway(primary, nil)

	_, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	var upe *UpstreamProviderError
	if !errors.As(err, &upe) {
		t.Fatalf("err = %v, want UpstreamProviderError", err)
	}
	var rl *RateLimitError
	if !errors.As(upe.Err, &rl) {
		t.Errorf("underlying err = %v, want RateLimitError", upe.Err)
	}
}

// A hard (non-rate-limit) primary failure goes straight to the fallback, no
// backoff.
func TestCompleteHardFailureSkipsRetries(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		{err: errors.New("boom")},
	}}
	fallback := &stubProvider{name: "fallback", results: []stubResult{success("rescued")}}
	g, delays := newTestGateway(primary, fallback)

	resp, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "rescued" {
		t.Errorf("text = %q", resp.Text)
	}
	if primary.callCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.callCount())
	}
	if len(*delays) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", *delays)
	}
}

func TestCompleteBothProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{{err: errors.New("boom")}}}
	fallback := &stubProvider{name: "fallback", results: []stubResult{{err: errors.New("also boom")}}}
	g, _ := newTestGateway(primary, fallback)

	_, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi"})
	var upe *UpstreamProviderError
	if !errors.As(err, &upe) {
		t.Fatalf("err = %v, want UpstreamProviderError", err)
	}
	if upe.Provider != "fallback" {
		t.Errorf("provider = %q, want fallback (last failure)", upe.Provider)
	}
}

func TestCompleteMalformedStructuredOutput(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		{resp: &CompletionResponse{Text: "not json at all {"}},
	}}
	g, _ := newTestGateway(primary, nil)

	_, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi", StructuredOutput: true})
	var upe *UpstreamProviderError
	if !errors.As(err, &upe) {
		t.Fatalf("err = %v, want UpstreamProviderError", err)
	}
}

func TestCompleteStructuredOutputParsed(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{
		{resp: &CompletionResponse{Text: `{"score": 82}`}},
	}}
	g, _ := newTestGateway(primary, nil)

	resp, err := g.Complete(context.Background(), CompletionRequest{UserContent: "hi", StructuredOutput: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(resp.JSON) != `{"score": 82}` {
		t.Errorf("json = %s", resp.JSON)
	}
}

func TestCompleteContextCancelledDoesNotFallback(t *testing.T) {
	primary := &stubProvider{name: "primary", results: []stubResult{rateLimited()}}
	fallback := &stubProvider{name: "fallback", results: []stubResult{success("nope")}}
	g := NewGateway(primary, fallback, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Complete(ctx, CompletionRequest{UserContent: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if fallback.callCount() != 0 {
		t.Errorf("fallback called %d times after cancellation", fallback.callCount())
	}
}
