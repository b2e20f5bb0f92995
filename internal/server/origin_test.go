package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrigins(t *testing.T) {
	normalized, allowAll := normalizeOrigins([]string{
		" HTTP://Example.COM ",
		"",
		"not-a-url",
		"https://chat.example:8443",
	}, testLogger())

	assert.False(t, allowAll)
	assert.Equal(t, []string{"http://example.com", "https://chat.example:8443"}, normalized)

	_, allowAll = normalizeOrigins([]string{"*"}, testLogger())
	assert.True(t, allowAll)
}

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080"}, testLogger())
	wildcard := newOriginPolicy([]string{"*"}, testLogger())

	tests := []struct {
		name     string
		origin   string
		allowed  bool
		wildcard bool
	}{
		{"exact", "http://localhost:8080", true, true},
		{"case insensitive", "HTTP://LOCALHOST:8080", true, true},
		{"other port", "http://localhost:9090", false, true},
		{"other host", "http://evil.example", false, true},
		{"missing", "", false, false},
		{"malformed", "://missing-scheme", false, false},
		{"no host", "http://", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.allowed, policy.checkOrigin(r))
			assert.Equal(t, tt.wildcard, wildcard.checkOrigin(r))
		})
	}
}
