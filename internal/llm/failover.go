package llm

import (
	"context"

	"github.com/olasquare/olasquare/internal/logging"
)

// FailoverClient tries a list of clients in order, moving to the next one
// only on retryable errors (401, 403, 429, 5xx, timeouts).
type FailoverClient struct {
	clients []Client
	log     *logging.Logger
}

// NewFailoverClient creates a client that tries primary first, then each
// fallback in turn.
func NewFailoverClient(log *logging.Logger, primary Client, fallbacks ...Client) *FailoverClient {
	return &FailoverClient{
		clients: append([]Client{primary}, fallbacks...),
		log:     log.Sub("llm.failover"),
	}
}

// Name returns the primary provider name.
func (f *FailoverClient) Name() string { return f.clients[0].Name() }

// Complete tries the primary provider, falling back on retryable errors.
// Fallbacks always run with their own configured model.
func (f *FailoverClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for i, client := range f.clients {
		if i > 0 {
			req.Model = ""
		}

		resp, err := client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, err
		}
		if i < len(f.clients)-1 {
			f.log.Warn().
				Str("provider", client.Name()).
				Str("next", f.clients[i+1].Name()).
				Err(err).
				Msg("retryable error, trying next provider")
		}
	}
	return nil, lastErr
}
