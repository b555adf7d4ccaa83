package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseConfigPath tests ---

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"agent.maxToolRounds", []string{"agent", "maxToolRounds"}, false},
		{"channels.irc.server", []string{"channels", "irc", "server"}, false},
		{"model", []string{"model"}, false},
		{"", nil, true},
		{"a..b", nil, true},
		{".leading", nil, true},
		{"trailing.", nil, true},
		{"__proto__.x", nil, true},
		{"x.constructor", nil, true},
		{"a.prototype.b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- Get/Set/Unset tests ---

func TestGetValueAtPath(t *testing.T) {
	root := map[string]any{
		"model": map[string]any{
			"name":    "gpt-4o-mini",
			"timeout": "60s",
		},
		"flat": "value",
	}

	val, ok := GetValueAtPath(root, []string{"model", "name"})
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", val)

	_, ok = GetValueAtPath(root, []string{"model", "missing"})
	assert.False(t, ok)

	_, ok = GetValueAtPath(root, []string{"flat", "nested"})
	assert.False(t, ok, "traversing through a non-map should fail")

	val, ok = GetValueAtPath(root, []string{"model"})
	assert.True(t, ok)
	assert.IsType(t, map[string]any{}, val)
}

func TestSetValueAtPath(t *testing.T) {
	root := map[string]any{"agent": map[string]any{"persona": "assistant"}}

	SetValueAtPath(root, []string{"agent", "persona"}, "support")
	val, _ := GetValueAtPath(root, []string{"agent", "persona"})
	assert.Equal(t, "support", val)

	SetValueAtPath(root, []string{"channels", "irc", "server"}, "irc.libera.chat")
	val, ok := GetValueAtPath(root, []string{"channels", "irc", "server"})
	assert.True(t, ok)
	assert.Equal(t, "irc.libera.chat", val)

	root["flat"] = "string"
	SetValueAtPath(root, []string{"flat", "nested"}, 1)
	val, ok = GetValueAtPath(root, []string{"flat", "nested"})
	assert.True(t, ok)
	assert.Equal(t, 1, val)
}

func TestUnsetValueAtPath(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18790,
			"bind": "loopback",
		},
		"flat": "x",
	}

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	_, exists := GetValueAtPath(root, []string{"gateway", "port"})
	assert.False(t, exists)

	val, exists := GetValueAtPath(root, []string{"gateway", "bind"})
	assert.True(t, exists)
	assert.Equal(t, "loopback", val)

	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "nonexistent"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
	assert.False(t, UnsetValueAtPath(root, []string{"flat", "key"}))
}

// --- ResolvePaths tests ---

func TestResolvePaths_DefaultHome(t *testing.T) {
	t.Setenv("OLASQUARE_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".olasquare"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".olasquare", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".olasquare", "data"), paths.Data)
	assert.Equal(t, filepath.Join(home, ".olasquare", "logs"), paths.Logs)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("OLASQUARE_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
}

func TestPathsDatabase(t *testing.T) {
	paths := Paths{Data: "/var/olasquare/data"}
	assert.Equal(t, "/var/olasquare/data/olasquare.db", paths.Database(StoreConfig{}))
	assert.Equal(t, "/tmp/x.db", paths.Database(StoreConfig{Path: "/tmp/x.db"}))
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("OLASQUARE_HOME", filepath.Join(tmp, "home"))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs(), "second call should succeed")

	for _, d := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
