package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

const (
	configMapBackend = "kubernetes"
	checkpointSuffix = ".yaml"
	managedByLabel   = "app.kubernetes.io/managed-by"
	sequenceKey      = "switchyard.io/checkpoint-sequence"
)

// RuleSet is the rule state captured by a checkpoint.
type RuleSet interface {
	Snapshot() []model.RoutingRule
	Replace(ctx context.Context, rules []model.RoutingRule) error
}

type ConfigMapConfig struct {
	Namespace string
	Name      string
	// Limit bounds the number of checkpoints kept in the ConfigMap.
	Limit int
}

// ConfigMapCheckpointer stores rule snapshots as YAML entries of a single
// ConfigMap so they survive controller restarts. Entry keys carry a sequence
// number kept in a ConfigMap annotation, so they sort by creation order.
type ConfigMapCheckpointer struct {
	clientset k8s.Interface
	rules     RuleSet
	guard     *NamespaceGuard
	config    ConfigMapConfig
	logger    *slog.Logger
}

var _ outbound.Checkpointer = (*ConfigMapCheckpointer)(nil)

func NewConfigMapCheckpointer(clientset k8s.Interface, rules RuleSet, guard *NamespaceGuard, cfg ConfigMapConfig, logger *slog.Logger) *ConfigMapCheckpointer {
	if cfg.Limit < 1 {
		cfg.Limit = 20
	}
	if cfg.Name == "" {
		cfg.Name = "switchyard-checkpoints"
	}
	return &ConfigMapCheckpointer{clientset: clientset, rules: rules, guard: guard, config: cfg, logger: logger}
}

func (c *ConfigMapCheckpointer) Create(ctx context.Context, p model.Problem) (model.Checkpoint, error) {
	if err := c.guard.Check("checkpoint", c.config.Namespace); err != nil {
		return model.Checkpoint{}, err
	}
	cp := model.NewCheckpoint(p.ID, configMapBackend)
	data, err := yaml.Marshal(c.rules.Snapshot())
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("encoding rule snapshot: %w", err)
	}

	configMaps := c.clientset.CoreV1().ConfigMaps(c.config.Namespace)
	err = retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm, getErr := configMaps.Get(ctx, c.config.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(getErr) {
			_, createErr := configMaps.Create(ctx, c.newConfigMap(cp.ID, string(data)), metav1.CreateOptions{})
			return createErr
		}
		if getErr != nil {
			return getErr
		}
		if cm.Data == nil {
			cm.Data = make(map[string]string)
		}
		if cm.Annotations == nil {
			cm.Annotations = make(map[string]string)
		}
		seq, _ := strconv.Atoi(cm.Annotations[sequenceKey])
		seq++
		cm.Annotations[sequenceKey] = strconv.Itoa(seq)
		cm.Data[entryKey(seq, cp.ID)] = string(data)
		trimCheckpoints(cm.Data, c.config.Limit)
		_, updateErr := configMaps.Update(ctx, cm, metav1.UpdateOptions{})
		return updateErr
	})
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("writing checkpoint %s to configmap %s/%s: %w", cp.ID, c.config.Namespace, c.config.Name, err)
	}
	c.logger.Debug("configmap checkpoint created", "checkpoint_id", cp.ID, "problem_id", p.ID, "configmap", c.config.Name)
	return cp, nil
}

func (c *ConfigMapCheckpointer) Restore(ctx context.Context, cp model.Checkpoint) error {
	cm, err := c.clientset.CoreV1().ConfigMaps(c.config.Namespace).Get(ctx, c.config.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("restore %s: %w", cp.ID, model.ErrCheckpointNotFound)
	}
	if err != nil {
		return fmt.Errorf("restore %s: reading configmap: %w", cp.ID, err)
	}
	raw, ok := findEntry(cm.Data, cp.ID)
	if !ok {
		return fmt.Errorf("restore %s: %w", cp.ID, model.ErrCheckpointNotFound)
	}
	var snapshot []model.RoutingRule
	if err := yaml.Unmarshal([]byte(raw), &snapshot); err != nil {
		return fmt.Errorf("restore %s: decoding snapshot: %w", cp.ID, err)
	}
	if err := c.rules.Replace(ctx, snapshot); err != nil {
		return fmt.Errorf("restore %s: %w", cp.ID, err)
	}
	c.logger.Info("configmap checkpoint restored", "checkpoint_id", cp.ID, "rules", len(snapshot))
	return nil
}

func (c *ConfigMapCheckpointer) newConfigMap(id, data string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.config.Name,
			Namespace: c.config.Namespace,
			Labels:      map[string]string{managedByLabel: "switchyard"},
			Annotations: map[string]string{sequenceKey: "1"},
		},
		Data: map[string]string{entryKey(1, id): data},
	}
}

func entryKey(seq int, id string) string {
	return fmt.Sprintf("%08d_%s%s", seq, id, checkpointSuffix)
}

func findEntry(data map[string]string, id string) (string, bool) {
	suffix := "_" + id + checkpointSuffix
	for k, v := range data {
		if strings.HasSuffix(k, suffix) {
			return v, true
		}
	}
	return "", false
}

// trimCheckpoints drops the oldest checkpoint entries beyond limit.
func trimCheckpoints(data map[string]string, limit int) {
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasSuffix(k, checkpointSuffix) {
			keys = append(keys, k)
		}
	}
	if len(keys) <= limit {
		return
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-limit] {
		delete(data, k)
	}
}
