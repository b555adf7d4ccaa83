package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/channel"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/olasquare/olasquare/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// mockChannel is a test double for domain.Channel.
type mockChannel struct {
	id      string
	mu      sync.Mutex
	sent    []domain.OutboundMessage
	handler func(domain.InboundMessage)
}

func (m *mockChannel) ID() string                    { return m.id }
func (m *mockChannel) Start(_ context.Context) error { return nil }
func (m *mockChannel) Stop(_ context.Context) error  { return nil }
func (m *mockChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}
func (m *mockChannel) OnMessage(handler func(domain.InboundMessage)) { m.handler = handler }

func (m *mockChannel) messages() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.sent...)
}

func newTestDispatcher(complete func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error)) *agent.Dispatcher {
	log := testLogger()
	mock := &llm.MockClient{ProviderName: "mock", CompleteFunc: complete}
	return agent.NewDispatcher(agent.Options{}, mock, tools.NewRegistry(time.Second, log), agent.NewMemoryThreadStore(), log)
}

func reply(text string) func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return llm.Script(&llm.CompletionResponse{Content: text, Model: "mock-model"})
}

func setup(t *testing.T, d *agent.Dispatcher, scope string) (*mockChannel, *Router) {
	t.Helper()
	ch := &mockChannel{id: "irc"}
	reg := channel.NewRegistry(testLogger())
	reg.Register(ch)
	return ch, NewRouter(reg, d, scope, testLogger())
}

func TestRouter_HandleInbound_DM(t *testing.T) {
	d := newTestDispatcher(reply("Hello from the agent!"))
	ch, router := setup(t, d, "")

	router.HandleInbound(context.Background(), domain.InboundMessage{
		ChannelID: "irc",
		From:      "alice",
		ChatID:    "alice",
		ChatType:  domain.ChatTypeDM,
		Body:      "Hi there",
	})

	sent := ch.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice", sent[0].To)
	assert.Equal(t, "Hello from the agent!", sent[0].Body)

	hist, err := d.Store().History(context.Background(), "irc:alice")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestRouter_HandleInbound_GroupPerSender(t *testing.T) {
	d := newTestDispatcher(reply("Hi!"))
	ch, router := setup(t, d, ScopePerSender)

	for _, from := range []string{"alice", "bob"} {
		router.HandleInbound(context.Background(), domain.InboundMessage{
			ChannelID: "irc",
			From:      from,
			ChatID:    "#general",
			ChatType:  domain.ChatTypeGroup,
			Body:      "olabot: hello",
		})
	}

	sent := ch.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "#general", sent[0].To)
	assert.Equal(t, "alice: Hi!", sent[0].Body)
	assert.Equal(t, "bob: Hi!", sent[1].Body)

	threads, err := d.Store().List(context.Background())
	require.NoError(t, err)
	ids := []string{threads[0].ID, threads[1].ID}
	assert.ElementsMatch(t, []string{"irc:#general:alice", "irc:#general:bob"}, ids)
}

func TestRouter_HandleInbound_GroupGlobal(t *testing.T) {
	d := newTestDispatcher(reply("Hi!"))
	_, router := setup(t, d, ScopeGlobal)

	for _, from := range []string{"alice", "bob"} {
		router.HandleInbound(context.Background(), domain.InboundMessage{
			ChannelID: "irc",
			From:      from,
			ChatID:    "#general",
			ChatType:  domain.ChatTypeGroup,
			Body:      "hello",
		})
	}

	hist, err := d.Store().History(context.Background(), "irc:#general")
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

func TestRouter_HandleInbound_TurnErrorReply(t *testing.T) {
	d := newTestDispatcher(func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Code: 503, Message: "overloaded"}
	})
	ch, router := setup(t, d, "")

	router.HandleInbound(context.Background(), domain.InboundMessage{
		ChannelID: "irc",
		From:      "alice",
		ChatType:  domain.ChatTypeDM,
		Body:      "Hi",
	})

	sent := ch.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "model is unavailable")
}

func TestRouter_HandleInbound_ChannelNotFound(t *testing.T) {
	mock := &llm.MockClient{ProviderName: "mock"}
	log := testLogger()
	d := agent.NewDispatcher(agent.Options{}, mock, tools.NewRegistry(time.Second, log), agent.NewMemoryThreadStore(), log)
	router := NewRouter(channel.NewRegistry(log), d, "", log)

	router.HandleInbound(context.Background(), domain.InboundMessage{
		ChannelID: "nonexistent",
		From:      "alice",
		ChatType:  domain.ChatTypeDM,
		Body:      "Hi",
	})
	assert.Empty(t, mock.Requests())
}

func TestRouter_Wire(t *testing.T) {
	d := newTestDispatcher(reply("wired"))
	ch, router := setup(t, d, "")
	router.Wire(context.Background())
	require.NotNil(t, ch.handler)

	ch.handler(domain.InboundMessage{ChannelID: "irc", From: "carol", ChatType: domain.ChatTypeDM, Body: "ping"})
	require.Eventually(t, func() bool { return len(ch.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "wired", ch.messages()[0].Body)
}

func TestRouter_SendTo(t *testing.T) {
	ch, router := setup(t, nil, "")

	require.NoError(t, router.SendTo(context.Background(), "irc", "#test", "hello"))
	sent := ch.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "#test", sent[0].To)

	err := router.SendTo(context.Background(), "nonexistent", "#test", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFailureReply(t *testing.T) {
	assert.Contains(t, failureReply(&agent.TurnLimitError{Rounds: 10}), "too many tool calls")
	assert.Contains(t, failureReply(context.DeadlineExceeded), "too long")
	assert.Equal(t, "Sorry, something went wrong.", failureReply(assert.AnError))
}

func TestResolveThreadID(t *testing.T) {
	group := domain.InboundMessage{ChannelID: "irc", From: "alice", ChatID: "#general", ChatType: domain.ChatTypeGroup}
	dm := domain.InboundMessage{ChannelID: "irc", From: "alice", ChatID: "alice", ChatType: domain.ChatTypeDM}

	tests := []struct {
		name  string
		msg   domain.InboundMessage
		scope string
		want  string
	}{
		{"per-sender", group, ScopePerSender, "irc:#general:alice"},
		{"default scope", group, "", "irc:#general:alice"},
		{"global", group, ScopeGlobal, "irc:#general"},
		{"dm ignores scope", dm, ScopeGlobal, "irc:alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveThreadID(tt.msg, tt.scope))
		})
	}
}
