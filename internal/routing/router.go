// Package routing connects messaging channels to the dispatcher.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/channel"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/logging"
)

// Sender runs one user turn on a thread. *agent.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, threadID, text string) (*agent.TurnResult, error)
}

// Router feeds inbound channel messages into threads and sends the
// assistant's reply back through the originating channel.
type Router struct {
	channels *channel.Registry
	agent    Sender
	scope    string
	log      *logging.Logger
}

// NewRouter creates a message router. An empty scope means per-sender.
func NewRouter(channels *channel.Registry, sender Sender, scope string, log *logging.Logger) *Router {
	if scope == "" {
		scope = ScopePerSender
	}
	return &Router{
		channels: channels,
		agent:    sender,
		scope:    scope,
		log:      log.Sub("routing"),
	}
}

// HandleInbound runs a turn for msg and delivers the reply.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	threadID := ResolveThreadID(msg, r.scope)
	log := r.log.With("threadId", threadID)
	log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Str("chatId", msg.ChatID).
		Str("chatType", string(msg.ChatType)).
		Msg("routing inbound message")

	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		log.Error().Str("channel", msg.ChannelID).Msg("channel not found for reply")
		return
	}

	var body string
	result, err := r.agent.Send(ctx, threadID, msg.Body)
	if err != nil {
		log.Error().Err(err).Str("from", msg.From).Msg("turn failed")
		body = failureReply(err)
	} else {
		body = result.Response
	}

	reply := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        replyTarget(msg),
		Body:      addressed(msg, body),
	}
	if err := ch.Send(ctx, reply); err != nil {
		log.Error().Err(err).Str("to", reply.To).Msg("failed to send reply")
		return
	}

	if result != nil {
		log.Info().
			Str("to", reply.To).
			Int("rounds", result.Rounds).
			Str("model", result.Model).
			Dur("duration", result.Duration).
			Msg("reply sent")
	}
}

// Wire registers HandleInbound as the message handler on every channel.
// Each message runs in its own goroutine bound to ctx.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			go r.HandleInbound(ctx, msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// failureReply is what the user sees when a turn aborts.
func failureReply(err error) string {
	var gwErr *agent.GatewayError
	switch {
	case errors.Is(err, agent.ErrTurnLimitExceeded):
		return "Sorry, I could not finish that request: too many tool calls."
	case errors.As(err, &gwErr) && gwErr.Retryable():
		return "Sorry, the model is unavailable right now. Please try again shortly."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Sorry, that took too long."
	default:
		return "Sorry, something went wrong."
	}
}

// addressed prefixes group replies with the sender's nick.
func addressed(msg domain.InboundMessage, body string) string {
	if msg.ChatType == domain.ChatTypeGroup && msg.From != "" {
		return msg.From + ": " + body
	}
	return body
}

// replyTarget determines where to send the response.
func replyTarget(msg domain.InboundMessage) string {
	if msg.ChatType == domain.ChatTypeDM {
		return msg.From
	}
	return msg.ChatID
}

// SendTo sends a message to a specific channel.
func (r *Router) SendTo(ctx context.Context, channelID, target, body string) error {
	ch, ok := r.channels.Get(channelID)
	if !ok {
		return fmt.Errorf("channel not found: %s", channelID)
	}
	return ch.Send(ctx, domain.OutboundMessage{
		ChannelID: channelID,
		To:        target,
		Body:      body,
	})
}
