package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbeacon/internal/log"
)

func newTestMiddleware(t *testing.T) (*Middleware, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := log.NewFromSettings("info", "json", &buf)
	require.NoError(t, err)
	return NewMiddleware(logger, func(*http.Request) string { return "203.0.113.9" }), &buf
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	m, buf := newTestMiddleware(t)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "handling")
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/entries", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Len(t, seen, 20)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))

	out := buf.String()
	assert.Contains(t, out, `"msg":"handling"`)
	assert.Contains(t, out, `"request_id":"`+seen+`"`)
	assert.Contains(t, out, `"status_code":201`)
	assert.Contains(t, out, `"client_ip":"203.0.113.9"`)
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"valid id is kept", "abc-123", true},
		{"spaces are rejected", "abc 123", false},
		{"overlong id is rejected", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMiddleware(t)
			handler := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get(RequestIDHeader)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
				assert.True(t, strings.HasPrefix(got, "req_"))
			}
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m, _ := newTestMiddleware(t)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	for _, path := range []string{"/ok", "/boom", "/ok"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	metrics := m.GetMetrics()
	assert.EqualValues(t, 3, metrics.TotalRequests)
	assert.EqualValues(t, 1, metrics.ServerErrors)
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
