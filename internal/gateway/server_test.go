package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/hooks"
	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/olasquare/olasquare/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

func testDispatcher(t *testing.T, fn func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error)) *agent.Dispatcher {
	t.Helper()
	log := logging.New(nil, "silent")
	reg := tools.NewRegistry(time.Second, log)
	require.NoError(t, reg.Register(tools.NewDictionary(nil).Spec()))
	persona, err := agent.LookupPersona("assistant")
	require.NoError(t, err)
	mock := &llm.MockClient{ProviderName: "mock", CompleteFunc: fn}
	return agent.NewDispatcher(agent.Options{Persona: persona}, mock, reg, agent.NewMemoryThreadStore(), log)
}

func testServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults().Gateway
	cfg.Auth = config.GatewayAuth{Mode: "token", Token: testToken}

	srv := New(cfg, logging.New(nil, "silent"), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialAndConnect(t *testing.T, ts *httptest.Server, token string) (*websocket.Conn, Frame) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, "connect.challenge", challenge.Event)

	req, err := NewRequest("connect-1", "connect", ConnectParams{
		Client: ClientInfo{ID: "test-client", Version: "1.0.0"},
		Auth:   &ConnectAuth{Token: token},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	return conn, resp
}

func authenticatedConn(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp := dialAndConnect(t, ts, testToken)
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)
	return conn
}

// call sends a request and returns the response with the matching id,
// skipping events.
func call(t *testing.T, conn *websocket.Conn, id, method string, params any) Frame {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == FrameTypeResponse && f.ID == id {
			return f
		}
	}
}

func decode[T any](t *testing.T, f Frame) T {
	t.Helper()
	require.NotNil(t, f.OK)
	require.True(t, *f.OK, "error: %+v", f.Error)
	var out T
	require.NoError(t, json.Unmarshal(f.Payload, &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandshake_Success(t *testing.T) {
	_, ts := testServer(t, WithDispatcher(testDispatcher(t, nil)))

	_, resp := dialAndConnect(t, ts, testToken)
	hello := decode[HelloOK](t, resp)
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Equal(t, "assistant", hello.Persona)
	assert.Equal(t, []string{"channels.status", "chat.send", "health", "thread.history", "thread.list", "tools.list"}, hello.Methods)
}

func TestHandshake_WrongToken(t *testing.T) {
	_, ts := testServer(t)

	_, resp := dialAndConnect(t, ts, "wrong-token")
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)
}

func TestHandshake_NotConnectFirst(t *testing.T) {
	_, ts := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, _ := NewRequest("r1", "health", nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocolError, resp.Error.Code)
}

func TestRPC_Health(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts)

	health := decode[HealthResponse](t, call(t, conn, "h1", "health", nil))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
}

func TestRPC_UnknownMethod(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts)

	resp := call(t, conn, "u1", "config.set", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestRPC_ChatSendAndHistory(t *testing.T) {
	d := testDispatcher(t, llm.Script(
		&llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{{ID: "c1", Name: "check_dictionary", Arguments: map[string]any{"word": "api"}}}},
		&llm.CompletionResponse{Content: "An API lets programs talk.", Model: "mock-model"},
	))
	_, ts := testServer(t, WithDispatcher(d))
	conn := authenticatedConn(t, ts)

	res := decode[ChatSendResult](t, call(t, conn, "c1", "chat.send", chatSendParams{ThreadID: "user1", Message: "What is an API?"}))
	assert.Equal(t, "An API lets programs talk.", res.Response)
	assert.Equal(t, "user1", res.ThreadID)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "mock-model", res.Model)

	hist := decode[struct {
		ThreadID string           `json:"threadId"`
		Messages []domain.Message `json:"messages"`
	}](t, call(t, conn, "h1", "thread.history", threadParams{ThreadID: "user1"}))
	assert.Len(t, hist.Messages, 4)
	assert.Equal(t, "c1", hist.Messages[2].ToolCallID)

	list := decode[struct {
		Threads []domain.ThreadSummary `json:"threads"`
	}](t, call(t, conn, "l1", "thread.list", nil))
	require.Len(t, list.Threads, 1)
	assert.Equal(t, 4, list.Threads[0].MessageCount)
}

func TestRPC_ChatSendDefaultsThreadToConnection(t *testing.T) {
	_, ts := testServer(t, WithDispatcher(testDispatcher(t, nil)))
	conn, hello := dialAndConnect(t, ts, testToken)
	connID := decode[HelloOK](t, hello).Server.ConnID

	res := decode[ChatSendResult](t, call(t, conn, "c1", "chat.send", chatSendParams{Message: "hi"}))
	assert.Equal(t, "gateway:"+connID, res.ThreadID)
	assert.Equal(t, "mock response", res.Response)
}

func TestRPC_ChatSendErrors(t *testing.T) {
	d := testDispatcher(t, func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Code: 429, Message: "rate limited"}
	})
	_, ts := testServer(t, WithDispatcher(d))
	conn := authenticatedConn(t, ts)

	resp := call(t, conn, "e1", "chat.send", chatSendParams{ThreadID: "t", Message: "  "})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = call(t, conn, "e2", "chat.send", chatSendParams{ThreadID: "t", Message: "hi"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGatewayError, resp.Error.Code)
	assert.True(t, resp.Error.Retryable)
}

func TestRPC_ChatSendTurnLimit(t *testing.T) {
	log := logging.New(nil, "silent")
	reg := tools.NewRegistry(time.Second, log)
	require.NoError(t, reg.Register(tools.NewDictionary(nil).Spec()))
	persona, err := agent.LookupPersona("assistant")
	require.NoError(t, err)
	mock := &llm.MockClient{ProviderName: "mock", CompleteFunc: llm.Script(
		&llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{{ID: "c", Name: "check_dictionary", Arguments: map[string]any{"word": "api"}}}},
	)}
	d := agent.NewDispatcher(agent.Options{Persona: persona, MaxToolRounds: 2}, mock, reg, agent.NewMemoryThreadStore(), log)

	_, ts := testServer(t, WithDispatcher(d))
	conn := authenticatedConn(t, ts)

	resp := call(t, conn, "l1", "chat.send", chatSendParams{ThreadID: "loop", Message: "spin"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTurnLimitExceeded, resp.Error.Code)
	assert.False(t, resp.Error.Retryable)
}

func TestRPC_ChatSendUnavailable(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts)

	resp := call(t, conn, "c1", "chat.send", chatSendParams{ThreadID: "t", Message: "hi"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnavailable, resp.Error.Code)
}

func TestRPC_ThreadHistoryNotFound(t *testing.T) {
	_, ts := testServer(t, WithDispatcher(testDispatcher(t, nil)))
	conn := authenticatedConn(t, ts)

	resp := call(t, conn, "h1", "thread.history", threadParams{ThreadID: "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	resp = call(t, conn, "h2", "thread.history", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestRPC_ToolsList(t *testing.T) {
	_, ts := testServer(t, WithDispatcher(testDispatcher(t, nil)))
	conn := authenticatedConn(t, ts)

	out := decode[struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}](t, call(t, conn, "t1", "tools.list", nil))
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "check_dictionary", out.Tools[0].Name)
}

func TestRPC_ChannelsStatusEmpty(t *testing.T) {
	_, ts := testServer(t)
	conn := authenticatedConn(t, ts)

	out := decode[map[string][]domain.ChannelStatus](t, call(t, conn, "s1", "channels.status", nil))
	assert.Empty(t, out["channels"])
}

func TestTurnErrorShape(t *testing.T) {
	assert.Equal(t, CodeTurnLimitExceeded, turnErrorShape(&agent.TurnLimitError{Rounds: 10}).Code)
	assert.Equal(t, CodeGatewayError, turnErrorShape(context.DeadlineExceeded).Code)
	assert.Equal(t, CodeInternal, turnErrorShape(assert.AnError).Code)
}

func TestServe_LifecycleHooks(t *testing.T) {
	hm := hooks.NewManager(logging.New(nil, "silent"))
	events := make(chan string, 4)
	for _, ev := range []string{hooks.EventGatewayStart, hooks.EventGatewayStop} {
		hm.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			events <- p.Event
			return nil
		})
	}

	srv := New(config.GatewayConfig{Auth: config.GatewayAuth{Token: testToken}}, logging.New(nil, "silent"), WithHooks(hm))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	assert.Equal(t, hooks.EventGatewayStart, <-events)
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	assert.Equal(t, hooks.EventGatewayStop, <-events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18790", resolveBindAddr(config.GatewayConfig{Port: 18790, Bind: "loopback"}))
	assert.Equal(t, "0.0.0.0:80", resolveBindAddr(config.GatewayConfig{Port: 80, Bind: "lan"}))
}
