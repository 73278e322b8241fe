package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"propfinder/internal/model"
)

// ErrNoProvider is returned when every configured backend has been
// tried and none produced a completion. Callers fall back to
// heuristics instead of failing the search.
var ErrNoProvider = errors.New("no AI provider available")

// Orchestrator routes chat completions across the configured backend
// chain with retry, backoff and provider fallback. All state lives on
// the instance so tests can build isolated orchestrators.
type Orchestrator struct {
	backends   []AIBackend
	maxRetries int
	baseDelay  time.Duration

	mu          sync.Mutex
	probeOnce   sync.Once
	available   map[string]bool
	activeID    string
	activeModel string
}

// NewOrchestrator creates an orchestrator over the given backends in
// preference order
func NewOrchestrator(backends []AIBackend, maxRetries int) *Orchestrator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Orchestrator{
		backends:   backends,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		available:  make(map[string]bool),
	}
}

// probe checks each backend once and caches the result. Availability
// of a cloud backend can still change later; per-request errors then
// drive fallback regardless of the cached flag.
func (o *Orchestrator) probe(ctx context.Context) {
	o.probeOnce.Do(func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for _, b := range o.backends {
			if !b.IsEnabled() {
				o.available[b.ID()] = false
				continue
			}
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := b.Probe(probeCtx)
			cancel()
			o.available[b.ID()] = err == nil
			if err != nil {
				log.Printf("⚠️  AI backend %s unavailable: %v", b.ID(), err)
			} else {
				log.Printf("✅ AI backend %s available (%s)", b.ID(), strings.Join(b.Models(), ", "))
			}
		}
		// Default active backend is the first available one
		if o.activeID == "" {
			for _, b := range o.backends {
				if o.available[b.ID()] {
					o.activeID = b.ID()
					break
				}
			}
		}
	})
}

// ordered returns the backend chain with the active backend first
func (o *Orchestrator) ordered() []AIBackend {
	o.mu.Lock()
	active := o.activeID
	o.mu.Unlock()

	if active == "" {
		return o.backends
	}

	out := make([]AIBackend, 0, len(o.backends))
	for _, b := range o.backends {
		if b.ID() == active {
			out = append(out, b)
		}
	}
	for _, b := range o.backends {
		if b.ID() != active {
			out = append(out, b)
		}
	}
	return out
}

// Complete runs a chat completion through the backend chain and
// returns the text content plus the backend that served it.
//
// Capacity errors (429, quota) skip straight to the next backend.
// Transient errors retry the same backend with exponential backoff.
func (o *Orchestrator) Complete(ctx context.Context, req ChatCompletionRequest) (string, string, error) {
	o.probe(ctx)

	var lastErr error
	for _, backend := range o.ordered() {
		o.mu.Lock()
		avail := o.available[backend.ID()]
		override := ""
		if backend.ID() == o.activeID {
			override = o.activeModel
		}
		o.mu.Unlock()
		if !avail {
			continue
		}

		content, err := o.completeOne(ctx, backend, req, override)
		if err == nil {
			return content, backend.ID(), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		log.Printf("⚠️  AI backend %s failed, trying next: %v", backend.ID(), err)
	}

	if lastErr != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNoProvider, lastErr)
	}
	return "", "", ErrNoProvider
}

// completeOne tries a single backend with retries for transient errors
func (o *Orchestrator) completeOne(ctx context.Context, backend AIBackend, req ChatCompletionRequest, model string) (string, error) {
	// An explicit model override only applies to the backend it was
	// validated against; every other backend fills in its own
	req.Model = model

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			delay := o.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := backend.ChatCompletion(ctx, req)
		if err == nil {
			if resp.Content() == "" {
				return "", fmt.Errorf("empty completion from %s", backend.ID())
			}
			return resp.Content(), nil
		}
		lastErr = err

		if isCapacityError(err) {
			// Retrying a quota error against the same provider just
			// burns time, hand off immediately
			return "", err
		}
		if !isTransientError(err) {
			return "", err
		}
	}

	return "", lastErr
}

// Switch changes the preferred backend. The id must name a configured
// backend. A non-empty modelName must be one of that backend's
// available models and is then used for its completions; an empty
// modelName keeps the backend's own default.
func (o *Orchestrator) Switch(ctx context.Context, id, modelName string) (*model.ProviderInfo, error) {
	o.probe(ctx)

	for _, b := range o.backends {
		if b.ID() != id {
			continue
		}
		if !b.IsEnabled() {
			return nil, fmt.Errorf("backend %s is not configured", id)
		}
		if modelName != "" {
			known := false
			for _, m := range b.Models() {
				if m == modelName {
					known = true
					break
				}
			}
			if !known {
				return nil, fmt.Errorf("backend %s has no model %q (available: %s)",
					id, modelName, strings.Join(b.Models(), ", "))
			}
		}
		o.mu.Lock()
		o.activeID = id
		o.activeModel = modelName
		avail := o.available[id]
		o.mu.Unlock()
		info := backendInfo(b, avail)
		return &info, nil
	}

	return nil, fmt.Errorf("unknown backend: %s", id)
}

// Providers lists all configured backends with cached availability
func (o *Orchestrator) Providers(ctx context.Context) []model.ProviderInfo {
	o.probe(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	infos := make([]model.ProviderInfo, 0, len(o.backends))
	for _, b := range o.backends {
		infos = append(infos, backendInfo(b, o.available[b.ID()]))
	}
	return infos
}

// ActiveID returns the currently preferred backend id, or ""
func (o *Orchestrator) ActiveID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeID
}

// Health re-probes every backend and refreshes the availability map
func (o *Orchestrator) Health(ctx context.Context) []model.ProviderInfo {
	o.probe(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	infos := make([]model.ProviderInfo, 0, len(o.backends))
	for _, b := range o.backends {
		ok := false
		if b.IsEnabled() {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ok = b.Probe(probeCtx) == nil
			cancel()
		}
		o.available[b.ID()] = ok
		infos = append(infos, backendInfo(b, ok))
	}
	return infos
}

// isCapacityError detects rate limit and quota exhaustion responses
func isCapacityError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "insufficient_quota")
}

// isTransientError detects failures worth retrying on the same backend
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "eof")
}
