package model

import "time"

type ProblemType string

const (
	ProblemAPIConnectivity ProblemType = "api_connectivity"
	ProblemConfiguration   ProblemType = "configuration"
	ProblemPerformance     ProblemType = "performance"
	ProblemSecurity        ProblemType = "security"
)

// ProblemTypes lists every problem type in category order.
var ProblemTypes = []ProblemType{
	ProblemAPIConnectivity,
	ProblemConfiguration,
	ProblemPerformance,
	ProblemSecurity,
}

func (t ProblemType) Valid() bool {
	switch t {
	case ProblemAPIConnectivity, ProblemConfiguration, ProblemPerformance, ProblemSecurity:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

type ProblemStatus string

const (
	ProblemPending ProblemStatus = "pending"
	ProblemFixed   ProblemStatus = "fixed"
	ProblemFailed  ProblemStatus = "failed"
)

type ProblemSource string

const (
	SourceCheck     ProblemSource = "check"
	SourceSynthetic ProblemSource = "synthetic"
)

type Problem struct {
	ID             string        `json:"id"`
	Type           ProblemType   `json:"type"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Severity       Severity      `json:"severity"`
	Status         ProblemStatus `json:"status"`
	FixSuccessRate int           `json:"fix_success_rate"`
	Source         ProblemSource `json:"source"`
	CheckName      string        `json:"check_name,omitempty"`
	Component      string        `json:"component,omitempty"`
	DetectedAt     time.Time     `json:"detected_at"`
}

func NewProblem(typ ProblemType, name, description string, severity Severity, fixSuccessRate int) Problem {
	return Problem{
		ID:             NewID("prob_"),
		Type:           typ,
		Name:           name,
		Description:    description,
		Severity:       severity,
		Status:         ProblemPending,
		FixSuccessRate: clampPercent(fixSuccessRate),
		Source:         SourceCheck,
		DetectedAt:     time.Now().UTC(),
	}
}

func (p Problem) WithStatus(status ProblemStatus) Problem {
	p.Status = status
	return p
}

func (p Problem) Fixed() Problem  { return p.WithStatus(ProblemFixed) }
func (p Problem) Failed() Problem { return p.WithStatus(ProblemFailed) }

func (p Problem) WithSource(source ProblemSource) Problem {
	p.Source = source
	return p
}

func (p Problem) WithComponent(checkName, component string) Problem {
	p.CheckName = checkName
	p.Component = component
	return p
}

func (p Problem) IsSynthetic() bool {
	return p.Source == SourceSynthetic
}

// SeverityRank orders severities, critical highest. Unknown severities rank 0.
func (p Problem) SeverityRank() int {
	return severityRank[p.Severity]
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
