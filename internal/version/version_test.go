package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t,
		"olasquare dev (commit: unknown, built: unknown, "+runtime.GOOS+"/"+runtime.GOARCH+")",
		Info())
}

func TestInfo_Ldflags(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "0.4.0", "9f3c2e1d8a", "2026-10-01"

	info := Info()
	assert.Contains(t, info, "olasquare 0.4.0")
	assert.Contains(t, info, "commit: 9f3c2e1,")
	assert.Contains(t, info, "built: 2026-10-01")
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"":           "",
		"abc":        "abc",
		"1234567":    "1234567",
		"12345678":   "1234567",
		"9f3c2e1d8a": "9f3c2e1",
	} {
		assert.Equal(t, want, short(in), in)
	}
}
