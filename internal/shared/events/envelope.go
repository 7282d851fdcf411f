package events

import "time"

// Envelope is the shared notification shape emitted by the distribution engine.
// Consumers (UI/API layers, CRM sync) subscribe by EventType.
type Envelope struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SourceService  string    `json:"source_service"`
	OccurredAtUTC  time.Time `json:"occurred_at_utc"`
	CorrelationID  string    `json:"correlation_id"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	PayloadVersion int       `json:"payload_version"`
	Payload        any       `json:"payload"`
}

// Event types published by the distribution services.
const (
	TypeDistributorPromotedSenior = "distributor.promoted_senior"
	TypeDistributorPromotedLeader = "distributor.promoted_leader"
	TypeTaskCompleted             = "task.completed"
	TypeMonthlyStatementGenerated = "reward.statement_generated"
)
