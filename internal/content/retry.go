package content

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// RetryConfig controls the exponential backoff applied around every call.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, InitialDelay: 200 * time.Millisecond, MaxDelay: 8 * time.Second}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(2, float64(attempt))
	jittered := d * (0.75 + 0.5*rand.Float64())
	if time.Duration(jittered) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(jittered)
}

// FallbackHook mutates the session's model choice exactly once, returning
// the model to retry with. It is only consulted for OAuthPersonal-variant
// generators.
type FallbackHook func(currentModel string) (newModel string, ok bool)

// RetryingGenerator wraps a ContentGenerator with the retry policy:
// transient errors (rate-limit, 5xx) retry with exponential backoff; a
// persistent rate-limit triggers the fallback hook exactly once per
// session. Non-OAuth auth types skip the fallback hook.
type RetryingGenerator struct {
	inner    ContentGenerator
	cfg      RetryConfig
	hook     FallbackHook
	used     bool // fallback hook consumed for this session
	Switched bool // the fallback hook fired and changed the model
}

func NewRetryingGenerator(inner ContentGenerator, cfg RetryConfig, hook FallbackHook) *RetryingGenerator {
	return &RetryingGenerator{inner: inner, cfg: cfg, hook: hook}
}

func (r *RetryingGenerator) Variant() AuthVariant { return r.inner.Variant() }

func (r *RetryingGenerator) Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error) {
	return r.withRetry(ctx, model, func(m string) (Response, error) {
		return r.inner.Generate(ctx, m, contents, cfg)
	})
}

func (r *RetryingGenerator) GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error) {
	// Streaming retries only the initial connection attempt; once a stream
	// has started yielding partials, a mid-stream failure surfaces as a
	// terminal error (the TurnEngine converts it to an Error event) rather
	// than being silently retried, since partial output has already been
	// observed by the caller.
	out := make(chan Response)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)

		m := model
		var lastErr error
		for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
			stream, errs := r.inner.GenerateStream(ctx, m, contents, cfg)
			started := false
			for resp := range stream {
				started = true
				select {
				case out <- resp:
				case <-ctx.Done():
					return
				}
			}
			err := <-errs
			if err == nil {
				return
			}
			lastErr = err
			if started {
				errc <- err
				return
			}
			kind := classify(err)
			if kind != protocol.ErrTransientBackend && kind != protocol.ErrQuotaExhausted {
				errc <- err
				return
			}
			if isPersistentRateLimit(err, attempt, r.cfg.MaxAttempts) {
				if newModel, ok := r.tryFallback(m); ok {
					m = newModel
					continue
				}
			}
			select {
			case <-time.After(r.cfg.delay(attempt)):
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- lastErr
	}()
	return out, errc
}

func (r *RetryingGenerator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	return r.inner.CountTokens(ctx, model, contents)
}

func (r *RetryingGenerator) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	vecs, err := r.inner.Embed(ctx, model, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, protocol.NewRuntimeError(protocol.ErrExecution, "embed: result count does not match input count", nil)
	}
	return vecs, nil
}

func (r *RetryingGenerator) withRetry(ctx context.Context, model string, call func(m string) (Response, error)) (Response, error) {
	m := model
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		resp, err := call(m)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		kind := classify(err)
		if kind != protocol.ErrTransientBackend && kind != protocol.ErrQuotaExhausted {
			return Response{}, err
		}
		if isPersistentRateLimit(err, attempt, r.cfg.MaxAttempts) {
			if newModel, ok := r.tryFallback(m); ok {
				m = newModel
				continue
			}
		}
		select {
		case <-time.After(r.cfg.delay(attempt)):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return Response{}, lastErr
}

// tryFallback consumes the once-per-session fallback hook. Only
// OAuthPersonal-variant generators are eligible.
func (r *RetryingGenerator) tryFallback(current string) (string, bool) {
	if r.hook == nil || r.used {
		return "", false
	}
	if r.inner.Variant() != AuthOAuthPersonal {
		return "", false
	}
	newModel, ok := r.hook(current)
	if !ok {
		return "", false
	}
	r.used = true
	r.Switched = true
	return newModel, true
}

func isPersistentRateLimit(err error, attempt, maxAttempts int) bool {
	var re *protocol.RuntimeError
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == protocol.ErrQuotaExhausted || attempt >= maxAttempts-1
}

// classify maps an arbitrary error into the taxonomy; backends are expected
// to already return *protocol.RuntimeError, but classify degrades
// gracefully for an unwrapped error.
func classify(err error) protocol.ErrorKind {
	var re *protocol.RuntimeError
	if errors.As(err, &re) {
		return re.Kind
	}
	return protocol.ErrExecution
}
