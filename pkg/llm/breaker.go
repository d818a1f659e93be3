package llm

import (
	"context"
	"errors"

	"github.com/edgeflare/ragapi/pkg/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerChatModel stops calling the chat model after consecutive failures and fails fast
// with gobreaker.ErrOpenState until the open timeout elapses.
type BreakerChatModel struct {
	next ChatModel
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerChatModel(next ChatModel, cfg config.BreakerConfig, logger *zap.Logger) *BreakerChatModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "chat-model",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// caller cancellation is not a model failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerChatModel{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerChatModel) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Invoke(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State returns the current breaker state.
func (b *BreakerChatModel) State() gobreaker.State {
	return b.cb.State()
}
