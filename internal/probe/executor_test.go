package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, d Descriptor) Outcome {
	t.Helper()
	d.Target = srv.URL
	if d.ExpectedStatus == 0 {
		d.ExpectedStatus = 200
	}
	if d.Timeout == 0 {
		d.Timeout = 5 * time.Second
	}
	return NewExecutor(0).Execute(context.Background(), d)
}

func TestExecute_UptimeOK(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeUptime})

	assert.Equal(t, domain.CheckResultOK, out.Result)
	require.NotNil(t, out.HTTPStatus)
	assert.Equal(t, 200, *out.HTTPStatus)
	assert.Nil(t, out.ErrorMessage)
	assert.Greater(t, out.Latency, time.Duration(0))
}

func TestExecute_ServerErrorForcesFail(t *testing.T) {
	// HTTP >= 500 must fail for every check type, including JSON checks
	// whose body claims everything is fine.
	for _, ct := range []domain.CheckType{
		domain.CheckTypeUptime, domain.CheckTypeHealthAPI, domain.CheckTypeSSL,
		domain.CheckTypeCMS, domain.CheckTypeForm, domain.CheckTypeSEO,
	} {
		t.Run(string(ct), func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})

			out := execute(t, srv, Descriptor{Type: ct})
			assert.Equal(t, domain.CheckResultFail, out.Result)
		})
	}
}

func TestExecute_ClientErrorForcesWarn(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeUptime})
	assert.Equal(t, domain.CheckResultWarn, out.Result)
}

func TestExecute_FormPostsSyntheticPayload(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody map[string]string

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeForm})

	assert.Equal(t, domain.CheckResultOK, out.Result)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Health Check", gotBody["name"])
	assert.Equal(t, "healthcheck@example.com", gotBody["email"])
	assert.NotEmpty(t, gotBody["message"])
}

func TestExecute_JSONStatusInterpretation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		expected domain.CheckResult
	}{
		{"status ok", `{"status":"ok"}`, 200, domain.CheckResultOK},
		{"status error", `{"status":"error"}`, 200, domain.CheckResultFail},
		{"status degraded", `{"status":"degraded"}`, 200, domain.CheckResultWarn},
		{"status healthy treated as ok", `{"status":"healthy"}`, 200, domain.CheckResultOK},
		{"non-json body success fallback", "plain text", 200, domain.CheckResultOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			out := execute(t, srv, Descriptor{Type: domain.CheckTypeHealthAPI})
			assert.Equal(t, tt.expected, out.Result)
		})
	}
}

func TestExecute_JSONStatusCapturesRawPayload(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","detail":"db down"}`))
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeCMS})

	assert.Equal(t, domain.CheckResultFail, out.Result)
	assert.JSONEq(t, `{"status":"error","detail":"db down"}`, string(out.RawPayload))
}

func TestExecute_UnexpectedStatusWarns(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeUptime, ExpectedStatus: 200})
	assert.Equal(t, domain.CheckResultWarn, out.Result)
}

func TestExecute_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	out := execute(t, srv, Descriptor{Type: domain.CheckTypeUptime, Timeout: 50 * time.Millisecond})

	assert.Equal(t, domain.CheckResultFail, out.Result)
	assert.Nil(t, out.HTTPStatus)
	require.NotNil(t, out.ErrorMessage)
	assert.NotEmpty(t, *out.ErrorMessage)
	assert.Less(t, out.Latency, 500*time.Millisecond)
}

func TestExecute_ConnectionRefused(t *testing.T) {
	out := NewExecutor(0).Execute(context.Background(), Descriptor{
		Type:    domain.CheckTypeUptime,
		Target:  "http://127.0.0.1:1",
		Timeout: time.Second,
	})

	assert.Equal(t, domain.CheckResultFail, out.Result)
	assert.Nil(t, out.HTTPStatus)
	require.NotNil(t, out.ErrorMessage)
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		target   string
		expected string
	}{
		{"absolute url untouched", "example.com", "https://other.com/health", "https://other.com/health"},
		{"path joined to bare domain", "example.com", "/health", "https://example.com/health"},
		{"path without leading slash", "example.com", "health", "https://example.com/health"},
		{"base with scheme", "http://example.com", "/", "http://example.com/"},
		{"base with trailing slash", "https://example.com/", "/api/health", "https://example.com/api/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveTarget(tt.base, tt.target))
		})
	}
}
