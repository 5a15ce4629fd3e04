package outbound

import "context"

type DeploymentStatus struct {
	Namespace         string
	Name              string
	DesiredReplicas   int32
	ReadyReplicas     int32
	UpdatedReplicas   int32
	AvailableReplicas int32
}

func (s DeploymentStatus) Ready() bool {
	return s.DesiredReplicas > 0 && s.ReadyReplicas >= s.DesiredReplicas
}

// WorkloadController abstracts the cluster operations used for provider
// deployments.
type WorkloadController interface {
	DeploymentStatus(ctx context.Context, namespace, name string) (DeploymentStatus, error)
	RestartDeployment(ctx context.Context, namespace, name string) error
	HealthCheck(ctx context.Context) error
}
