package model

import "errors"

// Domain sentinel errors. Callers match them with errors.Is.
var (
	ErrRuleNotFound          = errors.New("routing rule not found")
	ErrRuleExists            = errors.New("routing rule already exists")
	ErrDuplicateDefaultRule  = errors.New("a default routing rule already exists")
	ErrInvalidRule           = errors.New("invalid routing rule")
	ErrMalformedCondition    = errors.New("malformed condition")
	ErrInvalidRetryConfig    = errors.New("invalid retry config")
	ErrInvalidStrategy       = errors.New("invalid repair strategy")
	ErrDiagnosticsInProgress = errors.New("a diagnostics run is already in progress")
	ErrRepairPassInProgress  = errors.New("a repair pass is already running")
	ErrNoRemediation         = errors.New("no remediation registered for problem")
	ErrCheckpointNotFound    = errors.New("checkpoint not found")
	ErrNoDiagnostics         = errors.New("no diagnostics result available")
	ErrRepairNotFound        = errors.New("repair pass not found")
)
