package httpx

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mfigueredo/skinarb/internal/domain"
)

// rawClient issues HTTP/1.1 requests over a hand-managed TLS connection.
// Some venues sit behind WAFs that fingerprint the transport of mainstream
// HTTP libraries; a plain socket with a browser-shaped request line passes
// where the default client is blocked. The request contract is identical to
// the engine's: callers cannot tell which path served them.
type rawClient struct {
	dialer  *net.Dialer
	timeout time.Duration
}

func newRawClient(timeout time.Duration) *rawClient {
	return &rawClient{
		dialer:  &net.Dialer{Timeout: 10 * time.Second},
		timeout: timeout,
	}
}

func (c *rawClient) do(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("httpx: parse url: %w", err)
	}

	host := u.Host
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := c.dialConn(ctx, u.Scheme, host, u.Hostname())
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, classifyTransportError(err)
	}

	path := u.RequestURI()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(w, "Host: %s\r\n", u.Hostname())
	for k, v := range defaultHeaders {
		switch k {
		case "Accept-Encoding":
			// The raw path asks for an identity body; readResponse still
			// handles any encoding the server forces.
			fmt.Fprintf(w, "Accept-Encoding: identity\r\n")
		case "Connection":
			// Written once at the end as Connection: close.
		default:
			fmt.Fprintf(w, "%s: %s\r\n", k, v)
		}
	}
	for k, v := range req.Headers {
		fmt.Fprintf(w, "%s: %s\r\n", k, v)
	}
	if len(req.Body) > 0 {
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(req.Body))
	}
	fmt.Fprintf(w, "Connection: close\r\n\r\n")
	if len(req.Body) > 0 {
		w.Write(req.Body)
	}
	if err := w.Flush(); err != nil {
		return nil, classifyTransportError(err)
	}

	httpResp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, &domain.NetworkError{Kind: domain.NetworkConnectionReset, Err: err}
	}
	defer httpResp.Body.Close()

	return readResponse(httpResp, req.URL)
}

func (c *rawClient) dialConn(ctx context.Context, scheme, hostPort, serverName string) (net.Conn, error) {
	if scheme == "https" {
		tlsDialer := &tls.Dialer{
			NetDialer: c.dialer,
			Config:    &tls.Config{ServerName: serverName},
		}
		return tlsDialer.DialContext(ctx, "tcp", hostPort)
	}
	return c.dialer.DialContext(ctx, "tcp", hostPort)
}
