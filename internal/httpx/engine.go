// Package httpx is the single typed entry point for outbound web requests:
// consistent retry with exponential backoff, per-attempt timeouts, header
// merging, optional proxy selection, brotli-aware body buffering, and
// telemetry hooks.
package httpx

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/errgroup"

	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/proxy"
	"github.com/mfigueredo/skinarb/internal/telemetry"
)

// defaultHeaders are merged under caller headers on every request. The
// user agent is browser-like and accept-encoding advertises brotli, which
// several venues serve.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/html, */*",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "gzip, deflate, br",
	"Connection":      "keep-alive",
}

// Request describes one outbound call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	// Timeout overrides the engine default for this request's attempts.
	Timeout time.Duration
	// UseProxy borrows an endpoint from the pool manager; when the pools
	// are empty the request proceeds direct.
	UseProxy bool
	// LowLevel routes the request through the raw socket client used for
	// WAF-fronted venues.
	LowLevel bool
	// Venue labels telemetry for this request.
	Venue domain.Venue
}

// Response is a fully-buffered HTTP response. The body has already been
// decoded from any content encoding.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Result pairs a batch slot with its outcome.
type Result struct {
	Response *Response
	Err      error
}

// Engine wraps an HTTP client with connection pooling, a shared retry
// policy, and proxy rotation.
type Engine struct {
	direct      *http.Client
	proxies     *proxy.Manager
	recorder    *telemetry.Recorder
	lowLevel    *rawClient
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	mu           sync.Mutex
	proxyClients map[proxy.Endpoint]*http.Client
	transport    *http.Transport
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	Timeout         time.Duration
	MaxConnections  int
	MaxConnsPerHost int
	Proxies         *proxy.Manager
	Recorder        *telemetry.Recorder
	Logger          *slog.Logger
}

// NewEngine creates an Engine with a bounded connection pool.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConnections,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Engine{
		direct:       &http.Client{Transport: transport},
		proxies:      cfg.Proxies,
		recorder:     cfg.Recorder,
		lowLevel:     newRawClient(cfg.Timeout),
		maxRetries:   cfg.MaxRetries,
		backoffBase:  cfg.BackoffBase,
		backoffCap:   cfg.BackoffCap,
		timeout:      cfg.Timeout,
		logger:       cfg.Logger.With(slog.String("component", "http_engine")),
		proxyClients: make(map[proxy.Endpoint]*http.Client),
		transport:    transport,
	}
}

// Do executes the request under the engine's retry policy. Connection
// errors, 429 and 5xx are retried with backoff min(base·2^attempt, cap),
// refreshing the proxy each attempt; other statuses are terminal. The
// response body is fully buffered and content-decoded before return; an
// empty body is reported as domain.ErrEmptyResponse rather than left for
// the JSON decoder to trip over.
func (e *Engine) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := e.attempt(ctx, req, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !domain.Retryable(err) {
			return nil, err
		}
		if attempt == e.maxRetries {
			break
		}

		backoff := e.backoffBase << attempt
		if backoff > e.backoffCap {
			backoff = e.backoffCap
		}
		// 429 responses get elongated backoff on top of the bucket.
		if errors.Is(err, domain.ErrRateLimited) {
			backoff *= 2
			if backoff > e.backoffCap {
				backoff = e.backoffCap
			}
		}
		e.logger.Debug("request failed, backing off",
			slog.String("url", req.URL),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("httpx: %s %s failed after %d attempts: %w", req.Method, req.URL, e.maxRetries+1, lastErr)
}

// attempt performs a single request, choosing a proxy and client, and
// classifies the outcome.
func (e *Engine) attempt(ctx context.Context, req Request, timeout time.Duration) (*Response, error) {
	client := e.direct
	poolName := ""
	if req.UseProxy && e.proxies != nil {
		if ep, pool, ok := e.proxies.Acquire(); ok {
			client = e.clientFor(ep)
			poolName = pool
		}
		// Empty pools fall back to a direct connection.
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.roundTrip(attemptCtx, client, req)
	latency := time.Since(start)

	success := err == nil
	if e.recorder != nil && req.Venue != "" {
		e.recorder.RecordRequest(req.Venue, latency, success)
	}
	if poolName != "" {
		if success {
			e.proxies.RecordSuccess(poolName, latency)
		} else {
			e.proxies.RecordFailure(poolName)
		}
	}
	return resp, err
}

func (e *Engine) roundTrip(ctx context.Context, client *http.Client, req Request) (*Response, error) {
	if req.LowLevel {
		return e.lowLevel.do(ctx, req)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("httpx: create request: %w", err)
	}
	applyHeaders(httpReq, req.Headers)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	return readResponse(resp, req.URL)
}

// readResponse buffers and content-decodes the body, then maps the status.
// Setting Accept-Encoding explicitly disables net/http's transparent gzip
// handling, so both encodings are decoded here.
func readResponse(resp *http.Response, url string) (*Response, error) {
	reader := io.Reader(resp.Body)
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &domain.NetworkError{Kind: domain.NetworkConnectionReset, Err: err}
		}
		defer gz.Close()
		reader = gz
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, &domain.NetworkError{Kind: domain.NetworkConnectionReset, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.HTTPError{Status: resp.StatusCode, URL: url}
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyResponse, url)
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// applyHeaders merges the engine defaults under the caller's headers.
func applyHeaders(req *http.Request, overrides map[string]string) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range overrides {
		req.Header.Set(k, v)
	}
}

// classifyTransportError maps a client error onto the network taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &domain.NetworkError{Kind: domain.NetworkDNSFailure, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.NetworkError{Kind: domain.NetworkTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.NetworkError{Kind: domain.NetworkTimeout, Err: err}
	}
	return &domain.NetworkError{Kind: domain.NetworkConnectionReset, Err: err}
}

// clientFor returns (creating on first use) an HTTP client routed through
// the given proxy endpoint. Clients share pool limits with the direct
// transport configuration.
func (e *Engine) clientFor(ep proxy.Endpoint) *http.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.proxyClients[ep]; ok {
		return c
	}
	proxyURL, err := url.Parse(string(ep))
	if err != nil {
		return e.direct
	}
	transport := e.transport.Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	c := &http.Client{Transport: transport}
	e.proxyClients[ep] = c
	return c
}

// Batch runs the requests concurrently under the given cap, preserving
// input order in the result slice. A failing slot carries its error without
// aborting siblings.
func (e *Engine) Batch(ctx context.Context, reqs []Request, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := e.Do(ctx, req)
			results[i] = Result{Response: resp, Err: err}
			return nil
		})
	}
	// Workers never return errors; Wait only waits.
	_ = g.Wait()
	return results
}
