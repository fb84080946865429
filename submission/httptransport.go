package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RouteEndpoints maps each RouteClass to the URL of the off-chain
// service that accepts a reserved nonce and broadcasts the
// corresponding bundle: a private-relay bundler, a deferred-execution
// queue, or a public JSON-RPC node's eth_sendRawTransaction proxy.
// Routes with no configured endpoint are always unhealthy.
type RouteEndpoints map[RouteClass]string

// HTTPTransport implements Transport by POSTing the already-assigned
// nonce and bundle id to the route's configured endpoint, which is
// expected to look the bundle's signed payload up by id (the session
// key signs at simulation/enforcement time, upstream of submission)
// and return the resulting transaction hash.
type HTTPTransport struct {
	endpoints RouteEndpoints
	http      *http.Client
}

func NewHTTPTransport(endpoints RouteEndpoints, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPTransport{endpoints: endpoints, http: &http.Client{Timeout: timeout}}
}

type sendRequest struct {
	Account  string `json:"account"`
	Nonce    uint64 `json:"nonce"`
	BundleID string `json:"bundleId"`
}

type sendResponse struct {
	TxHash string `json:"txHash"`
}

func (t *HTTPTransport) Send(ctx context.Context, route RouteClass, account string, nonce uint64, bundleID string) (string, error) {
	endpoint, ok := t.endpoints[route]
	if !ok || endpoint == "" {
		return "", fmt.Errorf("submission: no endpoint configured for route %s", route)
	}

	body, err := json.Marshal(sendRequest{Account: account, Nonce: nonce, BundleID: bundleID})
	if err != nil {
		return "", fmt.Errorf("submission: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("submission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission: %s request failed: %w", route, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("submission: %s status %d", route, resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("submission: decode response: %w", err)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("submission: %s returned empty tx hash", route)
	}
	return out.TxHash, nil
}

// HealthCheck reports a route healthy only when it has a configured
// endpoint. A stricter production check would ping the endpoint; this
// keeps the health gate synchronous and side-effect free, matching
// Router's expectation that HealthCheck never blocks on network I/O.
func (t *HTTPTransport) HealthCheck(route RouteClass) bool {
	endpoint, ok := t.endpoints[route]
	return ok && endpoint != ""
}
