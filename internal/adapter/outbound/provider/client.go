package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/pkg/version"
)

const (
	defaultHealthPath = "/v1/models"
	defaultInvokePath = "/v1/chat/completions"
	maxErrorBody      = 4 << 10
	maxResponseBody   = 8 << 20
)

// ErrUnknownProvider is returned for a provider ID with no configured endpoint.
var ErrUnknownProvider = errors.New("unknown provider")

// Endpoint describes how to reach one backend provider.
type Endpoint struct {
	BaseURL    string
	APIKey     string
	HealthPath string
	InvokePath string
}

// Client speaks plain HTTP to the configured providers. It implements both
// the invoker used by the dispatcher and the prober used by diagnostics.
type Client struct {
	endpoints  map[string]Endpoint
	httpClient *http.Client
	now        func() time.Time
}

var (
	_ outbound.ProviderInvoker = (*Client)(nil)
	_ outbound.ProviderProber  = (*Client)(nil)
)

// NewClient creates a client. A zero timeout leaves deadlines to the caller's context.
func NewClient(endpoints map[string]Endpoint, timeout time.Duration) *Client {
	eps := make(map[string]Endpoint, len(endpoints))
	for id, ep := range endpoints {
		ep.BaseURL = strings.TrimRight(ep.BaseURL, "/")
		if ep.HealthPath == "" {
			ep.HealthPath = defaultHealthPath
		}
		if ep.InvokePath == "" {
			ep.InvokePath = defaultInvokePath
		}
		eps[id] = ep
	}
	return &Client{
		endpoints: eps,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
}

func (c *Client) endpoint(providerID string) (Endpoint, error) {
	ep, ok := c.endpoints[providerID]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return ep, nil
}

// Invoke posts the payload to the provider. Non-2xx responses are returned as
// *model.HTTPError so the classifier sees the status and request ID.
func (c *Client) Invoke(ctx context.Context, req outbound.InvocationRequest) (outbound.InvocationResult, error) {
	ep, err := c.endpoint(req.ProviderID)
	if err != nil {
		return outbound.InvocationResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+ep.InvokePath, bytes.NewReader(req.Payload))
	if err != nil {
		return outbound.InvocationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq, ep)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Model != "" {
		httpReq.Header.Set("X-Switchyard-Model", req.Model)
	}
	for k, v := range req.Parameters {
		httpReq.Header.Set("X-Switchyard-Param-"+k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return outbound.InvocationResult{}, fmt.Errorf("invoking %s: %w", req.ProviderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return outbound.InvocationResult{}, responseError(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return outbound.InvocationResult{}, fmt.Errorf("reading %s response: %w", req.ProviderID, err)
	}
	return outbound.InvocationResult{
		ProviderID: req.ProviderID,
		Model:      req.Model,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Probe issues a GET against the provider's health path. HTTP error statuses
// are reported in the result, not as an error.
func (c *Client) Probe(ctx context.Context, providerID string) (outbound.ProbeResult, error) {
	ep, err := c.endpoint(providerID)
	if err != nil {
		return outbound.ProbeResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL+ep.HealthPath, nil)
	if err != nil {
		return outbound.ProbeResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq, ep)

	start := c.now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return outbound.ProbeResult{}, fmt.Errorf("probing %s: %w", providerID, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	return outbound.ProbeResult{
		ProviderID: providerID,
		StatusCode: resp.StatusCode,
		Latency:    c.now().Sub(start),
	}, nil
}

func (c *Client) authorize(req *http.Request, ep Endpoint) {
	req.Header.Set("User-Agent", version.UserAgent())
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}
}

func responseError(resp *http.Response) *model.HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	reqID := resp.Header.Get("X-Request-Id")
	if reqID == "" {
		reqID = resp.Header.Get("Request-Id")
	}
	return &model.HTTPError{
		Status:  resp.StatusCode,
		Request: reqID,
		Message: strings.TrimSpace(string(body)),
	}
}
