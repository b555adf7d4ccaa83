package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the CLI at a fresh home directory and a scripted model.
func isolate(t *testing.T, complete func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error)) *llm.MockClient {
	t.Helper()
	t.Setenv("OLASQUARE_HOME", t.TempDir())
	for _, v := range []string{"OLASQUARE_PROVIDER", "OLASQUARE_MODEL", "OLASQUARE_PERSONA", "OLASQUARE_MAX_TOOL_ROUNDS", "OLASQUARE_LOG_LEVEL", "BRAVE_API_KEY"} {
		t.Setenv(v, "")
	}

	mock := &llm.MockClient{ProviderName: "mock", CompleteFunc: complete}
	orig := newModelClient
	newModelClient = func(config.ModelConfig, *logging.Logger) (llm.Client, error) { return mock, nil }
	t.Cleanup(func() { newModelClient = orig })
	return mock
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--log-level", "silent"))
	err := cmd.Execute()
	return out.String(), err
}

func dictionaryScript() func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return llm.Script(
		&llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{{ID: "c1", Name: "check_dictionary", Arguments: map[string]any{"word": "api"}}}},
		&llm.CompletionResponse{Content: "An API is how programs talk to each other.", Model: "mock-model"},
	)
}

func TestVersionCmd(t *testing.T) {
	isolate(t, nil)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "olasquare dev")
}

func TestConfigSetGetValidate(t *testing.T) {
	isolate(t, nil)

	_, err := run(t, "config", "set", "agent.maxToolRounds", "4")
	require.NoError(t, err)

	out, err := run(t, "config", "get", "agent.maxToolRounds")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = run(t, "config", "get", "agent.nope")
	require.Error(t, err)

	out, err = run(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	_, err = run(t, "config", "set", "agent.persona", "pirate")
	require.NoError(t, err)
	out, err = run(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "agent.persona")
}

func TestSendAndThreadCommands(t *testing.T) {
	mock := isolate(t, nil)

	out, err := run(t, "send", "--thread", "user001", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "mock response\n", out)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, "hello there", reqs[0].Messages[0].Content)

	out, err = run(t, "thread", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "user001")
	assert.Regexp(t, `user001\s+2\s`, out)

	out, err = run(t, "thread", "show", "user001")
	require.NoError(t, err)
	assert.Contains(t, out, "[user]\nhello there")
	assert.Contains(t, out, "[assistant]\nmock response")

	_, err = run(t, "thread", "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no thread")
}

func TestSendTranscript(t *testing.T) {
	isolate(t, dictionaryScript())

	out, err := run(t, "send", "--thread", "user001", "--transcript", "What is an API?")
	require.NoError(t, err)
	assert.Contains(t, out, "[user]\nWhat is an API?")
	assert.Contains(t, out, `c1 check_dictionary(word="api")`)
	assert.Contains(t, out, "[tool c1]\n")
	assert.Contains(t, out, "[assistant]\nAn API is how programs talk to each other.")
}

func TestSendTurnLimit(t *testing.T) {
	isolate(t, llm.Script(
		&llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{{ID: "c", Name: "check_dictionary", Arguments: map[string]any{"word": "api"}}}},
	))

	_, err := run(t, "config", "set", "agent.maxToolRounds", "2")
	require.NoError(t, err)

	_, err = run(t, "send", "loop")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agent.ErrTurnLimitExceeded))
}

func TestKnowledgeCommands(t *testing.T) {
	isolate(t, nil)

	out, err := run(t, "knowledge", "add", "--id", "tcp", "--title", "TCP", "TCP provides reliable ordered delivery of bytes.")
	require.NoError(t, err)
	assert.Contains(t, out, "Added tcp")

	doc := filepath.Join(t.TempDir(), "networking.txt")
	require.NoError(t, os.WriteFile(doc, []byte("UDP is connectionless.\n\nDNS maps names to addresses."), 0o600))
	out, err = run(t, "knowledge", "import", "--category", "networks", "--max-len", "30", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 passage(s)")

	out, err = run(t, "knowledge", "search", "reliable delivery")
	require.NoError(t, err)
	assert.Contains(t, out, "tcp")
	assert.Contains(t, out, "reliable ordered delivery")

	out, err = run(t, "knowledge", "list", "--category", "networks")
	require.NoError(t, err)
	assert.Contains(t, out, "networking.txt#1")
	assert.Contains(t, out, "networking.txt#2")
	assert.NotContains(t, out, "tcp ")

	out, err = run(t, "knowledge", "delete", "tcp")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted tcp")

	_, err = run(t, "knowledge", "delete", "tcp")
	require.Error(t, err)

	out, err = run(t, "knowledge", "search", "reliable")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches.")
}

func TestKnowledgeNeedsSQLite(t *testing.T) {
	isolate(t, nil)
	_, err := run(t, "config", "set", "store.driver", "memory")
	require.NoError(t, err)

	_, err = run(t, "knowledge", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestToolsList(t *testing.T) {
	isolate(t, nil)

	out, err := run(t, "tools", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Persona: assistant")
	assert.Regexp(t, `check_weather\s+yes`, out)
	assert.Regexp(t, `search_knowledge\s+no`, out)

	out, err = run(t, "tools", "list", "--persona", "research")
	require.NoError(t, err)
	assert.Regexp(t, `search_knowledge\s+yes`, out)

	out, err = run(t, "tools", "list", "--persona", "support")
	require.NoError(t, err)
	assert.NotRegexp(t, `\syes\s`, out)

	_, err = run(t, "tools", "list", "--persona", "pirate")
	require.Error(t, err)
}

func TestStatusCmd(t *testing.T) {
	isolate(t, nil)
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Model:   openai/gpt-4o-mini")
	assert.Contains(t, out, "driver=sqlite threads=0")
	assert.Contains(t, out, "IRC:     (not configured)")
}

// fakeSender answers every turn with a fixed reply or error.
type fakeSender struct {
	texts []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, threadID, text string) (*agent.TurnResult, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.TurnResult{ThreadID: threadID, Response: "echo: " + text, Model: "fake"}, nil
}

func TestRunChatLoop(t *testing.T) {
	s := &fakeSender{}
	var out bytes.Buffer

	in := strings.NewReader("hello\n\n   \nWhat is an API?\nQUIT\nnever sent\n")
	require.NoError(t, runChatLoop(context.Background(), in, &out, s, "user1"))

	assert.Equal(t, []string{"hello", "What is an API?"}, s.texts)
	assert.Contains(t, out.String(), "Assistant: echo: hello")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRunChatLoop_ErrorsContinue(t *testing.T) {
	s := &fakeSender{err: &agent.TurnLimitError{Rounds: 10}}
	var out bytes.Buffer

	require.NoError(t, runChatLoop(context.Background(), strings.NewReader("one\ntwo\n"), &out, s, "user1"))
	assert.Len(t, s.texts, 2)
	assert.Equal(t, 2, strings.Count(out.String(), "Error: tool round limit exceeded"))
}

func TestChatModel(t *testing.T) {
	s := &fakeSender{}
	m := newChatModel(context.Background(), s, "user1", "assistant", nil)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("there!")})
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "hi there", string(m.input))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input)

	m.Update(cmd())
	assert.False(t, m.busy)
	require.Len(t, m.lines, 2)
	assert.Equal(t, chatLine{"user", "hi there"}, m.lines[0])
	assert.Equal(t, chatLine{"assistant", "echo: hi there"}, m.lines[1])
	assert.Contains(t, m.View(), "echo: hi there")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "blank input is ignored")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("exit")})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
	assert.Equal(t, []string{"hi there"}, s.texts)
}

func TestChatModel_TurnError(t *testing.T) {
	m := newChatModel(context.Background(), &fakeSender{}, "user1", "assistant", nil)
	m.busy = true
	m.Update(turnDoneMsg{err: errors.New("model gateway (openai): boom")})
	assert.False(t, m.busy)
	assert.Equal(t, "Error", m.status)
	assert.Contains(t, m.View(), "Error: model gateway (openai): boom")
}

func TestChatModel_History(t *testing.T) {
	history := []domain.Message{
		domain.UserMessage("What is an API?"),
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCallRequest{{ID: "c1", Name: "check_dictionary", Arguments: map[string]any{"word": "api"}}}},
		domain.ToolMessage("c1", "API: ..."),
		{Role: domain.RoleAssistant, Content: "An API is an interface."},
	}
	m := newChatModel(context.Background(), &fakeSender{}, "user1", "assistant", history)
	assert.Equal(t, []chatLine{
		{"user", "What is an API?"},
		{"tool", `check_dictionary(word="api")`},
		{"assistant", "An API is an interface."},
	}, m.lines)
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, `city="Lagos", units=2`, formatArgs(map[string]any{"units": 2, "city": "Lagos"}))
	assert.Empty(t, formatArgs(nil))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"1.5", 1.5},
		{"gpt-4o-mini", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}
