package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OculusClient talks to the Oculus Proxies configuration API: it fetches
// fresh proxy lists per region and detects the process's public IP so the
// vendor-side allow-list can follow it.
type OculusClient struct {
	apiURL     string
	authToken  string
	orderToken string
	ipServices []string
	httpClient *http.Client
	logger     *slog.Logger
}

// OculusConfig configures the vendor client. AuthToken and OrderToken come
// from the environment, read by the config loader into the proxy settings.
type OculusConfig struct {
	APIURL     string
	AuthToken  string
	OrderToken string
	IPServices []string
	Logger     *slog.Logger
}

// NewOculusClient creates a vendor client with a dedicated short-timeout
// HTTP client. Vendor calls never go through a proxy themselves.
func NewOculusClient(cfg OculusConfig) *OculusClient {
	return &OculusClient{
		apiURL:     cfg.APIURL,
		authToken:  cfg.AuthToken,
		orderToken: cfg.OrderToken,
		ipServices: cfg.IPServices,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     cfg.Logger.With(slog.String("component", "oculus")),
	}
}

// proxyRequest is the vendor's getProxies payload.
type proxyRequest struct {
	OrderToken      string   `json:"orderToken"`
	Country         string   `json:"country"`
	NumberOfProxies int      `json:"numberOfProxies"`
	WhiteListIP     []string `json:"whiteListIP"`
	EnableSock5     bool     `json:"enableSock5"`
	PlanType        string   `json:"planType"`
}

// FetchProxies requests count proxies for a region, passing the allow-list
// so the vendor accepts the caller's egress IP. The response may be a bare
// list, a {"proxies": [...]} object, or a single string; all forms are
// handled.
func (c *OculusClient) FetchProxies(ctx context.Context, region string, count int, allowList []string) ([]Endpoint, error) {
	payload, err := json.Marshal(proxyRequest{
		OrderToken:      c.orderToken,
		Country:         strings.ToUpper(region),
		NumberOfProxies: count,
		WhiteListIP:     allowList,
		EnableSock5:     false,
		PlanType:        "SHARED_DC",
	})
	if err != nil {
		return nil, fmt.Errorf("oculus: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("oculus: create request: %w", err)
	}
	req.Header.Set("authToken", c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oculus: fetch proxies for %s: %w", region, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oculus: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oculus: fetch proxies for %s: http %d", region, resp.StatusCode)
	}

	raws, err := decodeProxyList(body)
	if err != nil {
		return nil, fmt.Errorf("oculus: decode proxies for %s: %w", region, err)
	}

	endpoints := make([]Endpoint, 0, len(raws))
	for _, raw := range raws {
		ep, ok := parseEndpoint(raw)
		if !ok {
			c.logger.Warn("unexpected proxy format, skipping")
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// decodeProxyList accepts the three response shapes the vendor is known to
// return.
func decodeProxyList(body []byte) ([]string, error) {
	var wrapped struct {
		Proxies []string `json:"proxies"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Proxies != nil {
		return wrapped.Proxies, nil
	}

	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var single string
	if err := json.Unmarshal(body, &single); err == nil && single != "" {
		return []string{single}, nil
	}

	return nil, fmt.Errorf("unrecognized response shape")
}

// parseEndpoint converts the vendor's "host:port:user:pass" form into a
// standard proxy URL. Credentials never appear in logs.
func parseEndpoint(raw string) (Endpoint, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return "", false
	}
	host, port, user, pass := parts[0], parts[1], parts[2], parts[3]
	return Endpoint(fmt.Sprintf("http://%s:%s@%s:%s", user, pass, host, port)), true
}

// DetectPublicIP queries the configured lightweight lookup services in order
// and returns the first IP found. Services disagree on field names, so all
// known shapes are checked.
func (c *OculusClient) DetectPublicIP(ctx context.Context) (string, error) {
	var lastErr error
	for _, service := range c.ipServices {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("ip service %s: http %d", service, resp.StatusCode)
			continue
		}

		var payload struct {
			IP     string `json:"ip"`
			Origin string `json:"origin"`
			Query  string `json:"query"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			lastErr = err
			continue
		}
		for _, ip := range []string{payload.IP, payload.Origin, payload.Query} {
			if ip != "" {
				return ip, nil
			}
		}
	}
	return "", fmt.Errorf("oculus: all IP detection services failed: %w", lastErr)
}
