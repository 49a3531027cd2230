package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfigueredo/skinarb/internal/domain"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		BackoffCap:      5 * time.Millisecond,
		Timeout:         2 * time.Second,
		MaxConnections:  10,
		MaxConnsPerHost: 5,
		Logger:          slog.New(slog.DiscardHandler),
	})
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	resp, err := testEngine(t).Do(context.Background(), Request{
		URL:     srv.URL,
		Headers: map[string]string{"X-Custom": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "boom")
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	resp, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int64(3), calls.Load())
}

func TestDoClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "gone")
	}))
	defer srv.Close()

	_, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestDoRateLimitedRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, "slow down")
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	resp, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int64(2), calls.Load())
}

func TestDoEmptyBodyDistinctError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestDoBrotliBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		fmt.Fprint(bw, `{"compressed":true}`)
		bw.Close()
	}))
	defer srv.Close()

	resp, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.JSONEq(t, `{"compressed":true}`, string(resp.Body))
}

func TestDoConnectionErrorExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening any more

	start := time.Now()
	_, err := testEngine(t).Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	var netErr *domain.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Less(t, time.Since(start), time.Second, "backoff must be capped")
}

func TestBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "bad")
		default:
			fmt.Fprint(w, r.URL.Path)
		}
	}))
	defer srv.Close()

	reqs := []Request{
		{URL: srv.URL + "/a"},
		{URL: srv.URL + "/fail"},
		{URL: srv.URL + "/c"},
	}
	results := testEngine(t).Batch(context.Background(), reqs, 2)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.Equal(t, "/a", string(results[0].Response.Body))

	require.Error(t, results[1].Err, "per-slot failure must not abort siblings")

	require.NoError(t, results[2].Err)
	assert.Equal(t, "/c", string(results[2].Response.Body))
}

func TestDoHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, "late")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := testEngine(t).Do(ctx, Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || domain.Retryable(err) == false)
}
