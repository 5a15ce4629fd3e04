package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

const restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Controller implements outbound.WorkloadController with a clientset.
type Controller struct {
	clientset k8s.Interface
	guard     *NamespaceGuard
	logger    *slog.Logger
	now       func() time.Time
}

var _ outbound.WorkloadController = (*Controller)(nil)

func NewController(clientset k8s.Interface, guard *NamespaceGuard, logger *slog.Logger) *Controller {
	return &Controller{clientset: clientset, guard: guard, logger: logger, now: time.Now}
}

func (c *Controller) DeploymentStatus(ctx context.Context, namespace, name string) (outbound.DeploymentStatus, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return outbound.DeploymentStatus{}, fmt.Errorf("getting deployment %s/%s: %w", namespace, name, err)
	}
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	return outbound.DeploymentStatus{
		Namespace:         namespace,
		Name:              name,
		DesiredReplicas:   desired,
		ReadyReplicas:     dep.Status.ReadyReplicas,
		UpdatedReplicas:   dep.Status.UpdatedReplicas,
		AvailableReplicas: dep.Status.AvailableReplicas,
	}, nil
}

// RestartDeployment triggers a rolling restart by stamping the pod template,
// the same patch kubectl rollout restart sends.
func (c *Controller) RestartDeployment(ctx context.Context, namespace, name string) error {
	if err := c.guard.Check("restart", namespace); err != nil {
		return err
	}

	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						restartedAtAnnotation: c.now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshalling restart patch: %w", err)
	}

	_, err = c.clientset.AppsV1().Deployments(namespace).Patch(
		ctx, name, types.StrategicMergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patching deployment %s/%s for restart: %w", namespace, name, err)
	}
	c.logger.Info("deployment restart requested", "namespace", namespace, "deployment", name)
	return nil
}

// HealthCheck verifies connectivity to the API server via ServerVersion.
func (c *Controller) HealthCheck(_ context.Context) error {
	if _, err := c.clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("k8s health check failed: %w", err)
	}
	return nil
}
