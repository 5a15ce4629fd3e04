package model

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is the payload delivered to notifiers for repair lifecycle events.
type Notification struct {
	Title              string            `json:"title"`
	Message            string            `json:"message"`
	Level              NotificationLevel `json:"level"`
	SourceComponent    string            `json:"source_component"`
	RepairPassID       string            `json:"repair_pass_id"`
	Status             string            `json:"status"`
	AffectedComponents []string          `json:"affected_components"`
}
