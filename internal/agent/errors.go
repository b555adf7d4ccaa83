package agent

import (
	"errors"
	"fmt"

	"github.com/olasquare/olasquare/internal/llm"
)

// ErrTurnLimitExceeded is matched by errors.Is when a turn requested more
// tool rounds than allowed.
var ErrTurnLimitExceeded = errors.New("tool round limit exceeded")

// TurnLimitError reports the bound that was hit.
type TurnLimitError struct {
	Rounds int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("%s after %d rounds", ErrTurnLimitExceeded, e.Rounds)
}

func (e *TurnLimitError) Unwrap() error { return ErrTurnLimitExceeded }

// GatewayError wraps a failed model call. The turn is aborted and whatever
// was appended to the thread before the failure stays there.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("model gateway (%s): %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("model gateway: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether sending the same message again may succeed.
func (e *GatewayError) Retryable() bool { return llm.IsRetryable(e.Err) }
