package kubernetes

import (
	"fmt"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/jonny/switchyard/pkg/version"
)

// ClientConfig selects how the clientset reaches the API server.
type ClientConfig struct {
	InCluster  bool
	Kubeconfig string
	// QPS and Burst override the client-side rate limits when non-zero.
	QPS   float32
	Burst int
}

// NewClientset creates a Kubernetes clientset from in-cluster config or a kubeconfig file.
func NewClientset(cfg ClientConfig) (k8s.Interface, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("building k8s config: %w", err)
	}
	if cfg.QPS > 0 {
		restCfg.QPS = cfg.QPS
	}
	if cfg.Burst > 0 {
		restCfg.Burst = cfg.Burst
	}
	restCfg.UserAgent = version.UserAgent()

	return k8s.NewForConfig(restCfg)
}
