package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rkotelnikov/sitewatch/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload() notifications.IncidentPayload {
	return notifications.IncidentPayload{
		IncidentID: "inc-1",
		SiteID:     "s1",
		Severity:   "sev-1",
		IsNew:      true,
	}
}

func TestSend_Success(t *testing.T) {
	var gotContentType string
	var gotBody notifications.IncidentPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSender(Config{URL: srv.URL})
	err := sender.Send(context.Background(), payload())

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, payload(), gotBody)
}

func TestSend_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewSender(Config{URL: srv.URL})
	err := sender.Send(context.Background(), payload())

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, http.StatusBadGateway, retryable.Code)
}

func TestSend_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewSender(Config{URL: srv.URL})
	err := sender.Send(context.Background(), payload())

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
}

func TestSend_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	sender := NewSender(Config{URL: srv.URL})
	err := sender.Send(context.Background(), payload())

	var permanent *PermanentError
	require.ErrorAs(t, err, &permanent)
	assert.False(t, permanent.IsRetryable())
}

func TestSend_ConnectionErrorIsRetryable(t *testing.T) {
	sender := NewSender(Config{URL: "http://127.0.0.1:1/hook"})
	err := sender.Send(context.Background(), payload())

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
}

func TestSend_EmptyURLIsPermanent(t *testing.T) {
	sender := NewSender(Config{})
	err := sender.Send(context.Background(), payload())

	var permanent *PermanentError
	require.ErrorAs(t, err, &permanent)
}

func TestSend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := NewSender(Config{URL: "http://example.com/hook", RateLimit: 1})
	err := sender.Send(ctx, payload())

	assert.Error(t, err)
}
