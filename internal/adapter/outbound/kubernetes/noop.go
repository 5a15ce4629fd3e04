package kubernetes

import (
	"context"
	"errors"

	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// ErrUnavailable is returned by NoopController for every cluster operation.
var ErrUnavailable = errors.New("kubernetes unavailable: integration disabled")

// NoopController stands in for the cluster when the kubernetes integration
// is disabled. Deployment checks report errors instead of silently passing.
type NoopController struct{}

var _ outbound.WorkloadController = NoopController{}

func (NoopController) DeploymentStatus(context.Context, string, string) (outbound.DeploymentStatus, error) {
	return outbound.DeploymentStatus{}, ErrUnavailable
}

func (NoopController) RestartDeployment(context.Context, string, string) error {
	return ErrUnavailable
}

func (NoopController) HealthCheck(context.Context) error {
	return ErrUnavailable
}
