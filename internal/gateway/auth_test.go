package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olasquare/olasquare/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("secret", "wrong"))
	assert.False(t, safeEqual("short", "longer-string"))
	assert.False(t, safeEqual("secret", ""))
}

func TestResolveAuth(t *testing.T) {
	t.Setenv("OLASQUARE_GATEWAY_TOKEN", "")
	t.Setenv("OLASQUARE_GATEWAY_PASSWORD", "")

	auth := ResolveAuth(config.GatewayAuth{Token: "my-token"})
	assert.Equal(t, "token", auth.Mode)
	assert.Equal(t, "my-token", auth.Token)

	auth = ResolveAuth(config.GatewayAuth{Password: "my-pass"})
	assert.Equal(t, "password", auth.Mode)

	t.Setenv("OLASQUARE_GATEWAY_TOKEN", "env-token")
	assert.Equal(t, "env-token", ResolveAuth(config.GatewayAuth{Mode: "token"}).Token)
	assert.Equal(t, "config-token", ResolveAuth(config.GatewayAuth{Mode: "token", Token: "config-token"}).Token)

	t.Setenv("OLASQUARE_GATEWAY_PASSWORD", "env-pass")
	assert.Equal(t, "env-pass", ResolveAuth(config.GatewayAuth{Mode: "password"}).Password)
}

func TestAuthorize(t *testing.T) {
	tokenAuth := ResolvedAuth{Mode: "token", Token: "secret"}
	passAuth := ResolvedAuth{Mode: "password", Password: "pass123"}

	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		ok     bool
		reason string
	}{
		{"token ok", tokenAuth, &ConnectAuth{Token: "secret"}, true, ""},
		{"token mismatch", tokenAuth, &ConnectAuth{Token: "wrong"}, false, "token_mismatch"},
		{"token empty", tokenAuth, &ConnectAuth{}, false, "token required"},
		{"server token unset", ResolvedAuth{Mode: "token"}, &ConnectAuth{Token: "x"}, false, "server token not configured"},
		{"password ok", passAuth, &ConnectAuth{Password: "pass123"}, true, ""},
		{"password mismatch", passAuth, &ConnectAuth{Password: "nope"}, false, "password_mismatch"},
		{"password empty", passAuth, &ConnectAuth{Token: "secret"}, false, "password required"},
		{"nil credentials", tokenAuth, nil, false, "no credentials provided"},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{Token: "x"}, false, "unknown auth mode: oauth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.ok {
				assert.Equal(t, tt.server.Mode, res.Method)
			}
		})
	}
}

func TestAuthRateLimiter(t *testing.T) {
	limiter := newAuthRateLimiter()
	assert.True(t, limiter.allow("192.168.1.1:12345"))

	for i := 0; i < authRateMaxFails-1; i++ {
		limiter.recordFailure("192.168.1.1:12345")
	}
	assert.True(t, limiter.allow("192.168.1.1:999"))

	limiter.recordFailure("192.168.1.1:12345")
	assert.False(t, limiter.allow("192.168.1.1:999"), "port does not matter")
	assert.True(t, limiter.allow("192.168.1.2:12345"))
}

func TestAuthRateLimiter_WindowExpires(t *testing.T) {
	limiter := newAuthRateLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < authRateMaxFails; i++ {
		limiter.recordFailure("10.0.0.1")
	}
	assert.False(t, limiter.allow("10.0.0.1"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, limiter.allow("10.0.0.1"))
	assert.Empty(t, limiter.failures)
}

func originRequest(origin string) *http.Request {
	req := httptest.NewRequest("GET", "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCheckWebSocketOrigin(t *testing.T) {
	assert.True(t, checkWebSocketOrigin(nil)(originRequest("")))
	assert.False(t, checkWebSocketOrigin(nil)(originRequest("http://evil.com")))
	assert.True(t, checkWebSocketOrigin([]string{"*"})(originRequest("http://anything.com")))

	check := checkWebSocketOrigin([]string{"http://one.com", "http://two.com"})
	assert.True(t, check(originRequest("http://two.com")))
	assert.False(t, check(originRequest("http://three.com")))
}
