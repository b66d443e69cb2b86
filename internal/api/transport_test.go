package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/apierr"
	"gareport/internal/config"
)

const rateLimitBody = `{"error":{"code":403,"message":"Rate Limit Exceeded","errors":[{"reason":"rateLimitExceeded","message":"Rate Limit Exceeded"}]}}`

// newTestTransport serves handler and never sleeps between retries
func newTestTransport(t *testing.T, handler http.HandlerFunc) (*Transport, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr := NewTransport(srv.Client(), config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 100, MaxRetries: 3})
	tr.sleep = func(context.Context, time.Duration) error { return nil }
	return tr, srv
}

func TestTransportRetriesRateLimit(t *testing.T) {
	var calls int32
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, rateLimitBody)
			return
		}
		io.WriteString(w, `{"name":"ok"}`)
	})

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, tr.get(context.Background(), DataAPI, srv.URL, &out))
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransportGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, rateLimitBody)
	})

	err := tr.get(context.Background(), DataAPI, srv.URL, nil)
	assert.ErrorIs(t, err, apierr.ErrTransient)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestTransportDoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"Field 'pagepath' is not a valid dimension."}}`)
	})

	err := tr.post(context.Background(), DataAPI, srv.URL, map[string]string{"a": "b"}, nil)
	assert.ErrorIs(t, err, apierr.ErrBadRequest)
	assert.Contains(t, err.Error(), "pagepath")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransportPostsJSON(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"viewId":"123"}`, string(body))
		io.WriteString(w, `{}`)
	})

	require.NoError(t, tr.post(context.Background(), ReportingAPI, srv.URL, map[string]string{"viewId": "123"}, nil))
}

func TestTransportStopsOnCancel(t *testing.T) {
	tr, srv := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, rateLimitBody)
	})
	ctx, cancel := context.WithCancel(context.Background())
	tr.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	err := tr.get(ctx, DataAPI, srv.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffGrows(t *testing.T) {
	for attempt := 0; attempt < 4; attempt++ {
		d := backoff(attempt)
		base := time.Duration(1<<attempt) * time.Second
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+time.Second)
	}
}
