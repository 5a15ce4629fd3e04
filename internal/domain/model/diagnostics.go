package model

import "time"

type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckWarning CheckStatus = "warning"
	CheckError   CheckStatus = "error"
)

// DefaultScore is the score of a check that does not report its own.
func (s CheckStatus) DefaultScore() float64 {
	switch s {
	case CheckOK:
		return 100
	case CheckWarning:
		return 60
	default:
		return 20
	}
}

// Category weights of the overall health score.
const (
	WeightConnectivity  = 0.30
	WeightConfiguration = 0.30
	WeightPerformance   = 0.20
	WeightSecurity      = 0.20
)

// CheckOutcome is what a single diagnostic check reports.
type CheckOutcome struct {
	Status    CheckStatus
	Message   string
	Component string
	// Score overrides the status default when non-nil.
	Score *float64
	// FixSuccessRate overrides the severity default when non-nil.
	FixSuccessRate *int
}

type CheckDetail struct {
	Name      string      `json:"name"`
	Status    CheckStatus `json:"status"`
	Message   string      `json:"message"`
	Component string      `json:"component,omitempty"`
	Score     float64     `json:"score"`
}

type CategoryResult struct {
	Category ProblemType   `json:"category"`
	Score    float64       `json:"score"`
	Details  []CheckDetail `json:"details"`
}

type DiagnosticsResult struct {
	ID                  string         `json:"id"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	APIConnectivity     CategoryResult `json:"api_connectivity"`
	ConfigurationIssues CategoryResult `json:"configuration_issues"`
	PerformanceMetrics  CategoryResult `json:"performance_metrics"`
	SecurityIssues      CategoryResult `json:"security_issues"`
	OverallScore        float64        `json:"overall_score"`
	Problems            []Problem      `json:"problems"`
}

// Category returns a pointer to the category result for t.
func (r *DiagnosticsResult) Category(t ProblemType) *CategoryResult {
	switch t {
	case ProblemAPIConnectivity:
		return &r.APIConnectivity
	case ProblemConfiguration:
		return &r.ConfigurationIssues
	case ProblemPerformance:
		return &r.PerformanceMetrics
	case ProblemSecurity:
		return &r.SecurityIssues
	}
	return nil
}

// OverallScore combines category scores with the fixed category weights.
func OverallScore(connectivity, configuration, performance, security float64) float64 {
	return connectivity*WeightConnectivity +
		configuration*WeightConfiguration +
		performance*WeightPerformance +
		security*WeightSecurity
}

// RealProblems returns the problems not produced by synthetic padding.
func (r DiagnosticsResult) RealProblems() []Problem {
	out := make([]Problem, 0, len(r.Problems))
	for _, p := range r.Problems {
		if !p.IsSynthetic() {
			out = append(out, p)
		}
	}
	return out
}
