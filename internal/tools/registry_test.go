package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olasquare/olasquare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, timeout time.Duration) *Registry {
	t.Helper()
	return NewRegistry(timeout, logging.New(nil, "silent"))
}

func echoSpec(name string) Spec {
	return Spec{
		Name:        name,
		Description: "echo " + name,
		Parameters:  Object(map[string]any{"text": String("text")}, "text"),
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			s, _ := args["text"].(string)
			return s, nil
		},
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := testRegistry(t, 0)
	require.NoError(t, reg.Register(echoSpec("echo")))

	spec, err := reg.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", spec.Name)

	_, err = reg.Resolve("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_RegisterRejects(t *testing.T) {
	reg := testRegistry(t, 0)
	require.NoError(t, reg.Register(echoSpec("echo")))

	assert.Error(t, reg.Register(echoSpec("echo")), "duplicate")
	assert.Error(t, reg.Register(echoSpec("")), "empty name")
	assert.Error(t, reg.Register(Spec{Name: "nohandler"}))
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	reg := testRegistry(t, 0)
	require.NoError(t, reg.Register(echoSpec("zeta")))
	require.NoError(t, reg.Register(echoSpec("alpha")))
	require.NoError(t, reg.Register(Spec{Name: "bare", Handler: echoSpec("x").Handler}))

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "bare", defs[1].Name)
	assert.Equal(t, "object", defs[1].Parameters["type"])
	assert.Equal(t, []string{"alpha", "bare", "zeta"}, reg.Names())
}

func TestRegistry_Invoke(t *testing.T) {
	reg := testRegistry(t, 0)
	require.NoError(t, reg.Register(echoSpec("echo")))
	require.NoError(t, reg.Register(Spec{
		Name: "broken",
		Handler: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("connection refused")
		},
	}))
	require.NoError(t, reg.Register(Spec{
		Name: "panicky",
		Handler: func(context.Context, map[string]any) (string, error) {
			panic("boom")
		},
	}))

	ctx := context.Background()
	assert.Equal(t, "hi", reg.Invoke(ctx, "echo", map[string]any{"text": "hi"}))
	assert.Equal(t, "Error: no such tool: nope", reg.Invoke(ctx, "nope", nil))
	assert.Equal(t, "Error: broken failed: connection refused", reg.Invoke(ctx, "broken", nil))
	assert.Equal(t, "Error: panicky failed: panic: boom", reg.Invoke(ctx, "panicky", nil))
}

func TestRegistry_InvokeTimeout(t *testing.T) {
	reg := testRegistry(t, 20*time.Millisecond)
	require.NoError(t, reg.Register(Spec{
		Name: "slow",
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}))

	out := reg.Invoke(context.Background(), "slow", nil)
	assert.Equal(t, "Error: slow failed: timed out after 20ms", out)
}

func TestDecodeArgs_WeakTyping(t *testing.T) {
	var args struct {
		Query string `mapstructure:"query"`
		Limit int    `mapstructure:"limit"`
	}
	require.NoError(t, DecodeArgs(map[string]any{"query": "go", "limit": "7"}, &args))
	assert.Equal(t, "go", args.Query)
	assert.Equal(t, 7, args.Limit)

	assert.Error(t, DecodeArgs(map[string]any{"limit": []string{"x"}}, &args))
}
