package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
)

// Func remediates one problem. It reports false when it ran but the problem
// persists.
type Func func(ctx context.Context, p model.Problem) (bool, error)

type prefixEntry struct {
	prefix string
	fn     Func
}

// Registry dispatches problems to remediations by the name of the check that
// raised them. Exact names win over prefixes; the longest prefix wins.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	exact    map[string]Func
	prefixes []prefixEntry
	fallback outbound.FixExecutor
}

var _ outbound.FixExecutor = (*Registry)(nil)

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger, exact: make(map[string]Func)}
}

func (r *Registry) Register(checkName string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[checkName] = fn
}

func (r *Registry) RegisterPrefix(prefix string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixEntry{prefix: prefix, fn: fn})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
}

// SetFallback handles problems no remediation is registered for. Without a
// fallback such problems fail with ErrNoRemediation.
func (r *Registry) SetFallback(fallback outbound.FixExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fallback
}

func (r *Registry) lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.exact[name]; ok {
		return fn, true
	}
	for _, e := range r.prefixes {
		if strings.HasPrefix(name, e.prefix) {
			return e.fn, true
		}
	}
	return nil, false
}

func (r *Registry) AttemptFix(ctx context.Context, p model.Problem) (bool, error) {
	name := p.CheckName
	if name == "" {
		name = p.Name
	}
	fn, ok := r.lookup(name)
	if !ok {
		r.mu.RLock()
		fallback := r.fallback
		r.mu.RUnlock()
		if fallback != nil {
			return fallback.AttemptFix(ctx, p)
		}
		return false, fmt.Errorf("%s: %w", name, model.ErrNoRemediation)
	}
	fixed, err := fn(ctx, p)
	r.logger.Info("remediation finished", "check", name, "problem_id", p.ID, "fixed", fixed, "error", err)
	return fixed, err
}
