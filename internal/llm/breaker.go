package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/olasquare/olasquare/internal/logging"
)

// BreakerClient stops calling a provider after repeated retryable failures.
// While open it fails fast with a 503 ProviderError so a FailoverClient
// moves straight on to the next provider.
type BreakerClient struct {
	inner     Client
	threshold int
	cooldown  time.Duration
	log       *logging.Logger
	now       func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// NewBreakerClient wraps inner with a consecutive-failure circuit breaker.
func NewBreakerClient(inner Client, threshold int, cooldown time.Duration, log *logging.Logger) *BreakerClient {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerClient{
		inner:     inner,
		threshold: threshold,
		cooldown:  cooldown,
		log:       log.Sub("llm.breaker").With("provider", inner.Name()),
		now:       time.Now,
	}
}

// Name returns the wrapped provider name.
func (b *BreakerClient) Name() string { return b.inner.Name() }

// Open reports whether the breaker is currently rejecting calls.
func (b *BreakerClient) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.openUntil)
}

// Complete forwards to the wrapped client unless the breaker is open.
func (b *BreakerClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	b.mu.Lock()
	until := b.openUntil
	open := b.now().Before(until)
	b.mu.Unlock()

	if open {
		return nil, &ProviderError{
			Provider: b.Name(),
			Code:     503,
			Message:  fmt.Sprintf("circuit open until %s", until.Format(time.RFC3339)),
		}
	}

	resp, err := b.inner.Complete(ctx, req)
	b.record(err)
	return resp, err
}

func (b *BreakerClient) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.openUntil = time.Time{}
		return
	}
	if !IsRetryable(err) {
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
		b.log.Warn().Err(err).Dur("cooldown", b.cooldown).Msg("circuit opened")
	}
}
