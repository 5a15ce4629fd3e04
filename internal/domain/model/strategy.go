package model

import (
	"fmt"
	"strings"
	"time"
)

type PriorityOrder string

const (
	OrderSeverity       PriorityOrder = "severity"
	OrderFixSuccessRate PriorityOrder = "fix_success_rate"
	OrderCustom         PriorityOrder = "custom"
)

// RepairStrategy is read-only to the orchestrator for the duration of a pass.
type RepairStrategy struct {
	EnabledTypes               map[ProblemType]bool `json:"enabled_types" yaml:"enabledTypes"`
	PriorityOrder              PriorityOrder        `json:"priority_order" yaml:"priorityOrder"`
	CustomWeights              map[ProblemType]int  `json:"custom_weights,omitempty" yaml:"customWeights,omitempty"`
	CreateBackupBeforeFix      bool                 `json:"create_backup_before_fix" yaml:"createBackupBeforeFix"`
	RollbackOnFailureThreshold float64              `json:"rollback_on_failure_threshold" yaml:"rollbackOnFailureThreshold"`
	FixTimeoutSeconds          int                  `json:"fix_timeout" yaml:"fixTimeout"`
	SkipSynthetic              bool                 `json:"skip_synthetic" yaml:"skipSynthetic"`
}

func DefaultRepairStrategy() RepairStrategy {
	return RepairStrategy{
		EnabledTypes: map[ProblemType]bool{
			ProblemAPIConnectivity: true,
			ProblemConfiguration:   true,
			ProblemPerformance:     true,
			ProblemSecurity:        false,
		},
		PriorityOrder:              OrderSeverity,
		CreateBackupBeforeFix:      true,
		RollbackOnFailureThreshold: 30,
		FixTimeoutSeconds:          30,
		SkipSynthetic:              true,
	}
}

func (s RepairStrategy) Enabled(t ProblemType) bool {
	return s.EnabledTypes[t]
}

func (s RepairStrategy) Weight(t ProblemType) int {
	return s.CustomWeights[t]
}

// FixTimeout returns the per-problem deadline. Zero means no deadline.
func (s RepairStrategy) FixTimeout() time.Duration {
	return time.Duration(s.FixTimeoutSeconds) * time.Second
}

// Admits reports whether p should be attempted under this strategy.
func (s RepairStrategy) Admits(p Problem) bool {
	if !s.Enabled(p.Type) {
		return false
	}
	if s.SkipSynthetic && p.IsSynthetic() {
		return false
	}
	return true
}

func (s RepairStrategy) Validate() error {
	var errs []string
	switch s.PriorityOrder {
	case OrderSeverity, OrderFixSuccessRate, OrderCustom:
	default:
		errs = append(errs, fmt.Sprintf("unknown priorityOrder %q", s.PriorityOrder))
	}
	if s.RollbackOnFailureThreshold < 0 || s.RollbackOnFailureThreshold > 100 {
		errs = append(errs, "rollbackOnFailureThreshold must be between 0 and 100")
	}
	if s.FixTimeoutSeconds < 0 {
		errs = append(errs, "fixTimeout must be >= 0")
	}
	for t := range s.EnabledTypes {
		if !t.Valid() {
			errs = append(errs, fmt.Sprintf("unknown problem type %q in enabledTypes", t))
		}
	}
	for t := range s.CustomWeights {
		if !t.Valid() {
			errs = append(errs, fmt.Sprintf("unknown problem type %q in customWeights", t))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStrategy, strings.Join(errs, "; "))
	}
	return nil
}
