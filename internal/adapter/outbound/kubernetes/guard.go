package kubernetes

import (
	"fmt"
	"strings"
)

// NamespaceGuard rejects writes to protected namespaces.
type NamespaceGuard struct {
	blocked map[string]bool
}

func NewNamespaceGuard(blocked []string) *NamespaceGuard {
	set := make(map[string]bool, len(blocked))
	for _, ns := range blocked {
		if ns = strings.TrimSpace(ns); ns != "" {
			set[strings.ToLower(ns)] = true
		}
	}
	return &NamespaceGuard{blocked: set}
}

func (g *NamespaceGuard) IsBlocked(ns string) bool {
	return g.blocked[strings.ToLower(ns)]
}

// Check returns an error naming op when ns is protected.
func (g *NamespaceGuard) Check(op, ns string) error {
	if ns == "" {
		return fmt.Errorf("%s denied: empty namespace", op)
	}
	if g.IsBlocked(ns) {
		return fmt.Errorf("%s denied: namespace %s is blocked", op, ns)
	}
	return nil
}
