package outbound

import (
	"context"
	"time"
)

type InvocationRequest struct {
	ProviderID string
	Model      string
	Parameters map[string]string
	Payload    []byte
}

type InvocationResult struct {
	ProviderID string
	Model      string
	StatusCode int
	Body       []byte
}

// ProviderInvoker performs the actual call to a backend provider. Failures
// should expose StatusCode() and RequestID() when the transport has them.
type ProviderInvoker interface {
	Invoke(ctx context.Context, req InvocationRequest) (InvocationResult, error)
}

type ProbeResult struct {
	ProviderID string
	StatusCode int
	Latency    time.Duration
}

// ProviderProber issues a lightweight health request against a provider.
type ProviderProber interface {
	Probe(ctx context.Context, providerID string) (ProbeResult, error)
}
