package audit

import "time"

// RecordID identifier type
type RecordID string

// RecordStatus enum
type RecordStatus string

const (
	RecordSuccess RecordStatus = "success"
	RecordError   RecordStatus = "error"
)

// AnalysisRecord is one analysis call stored for auditing and retrieval.
type AnalysisRecord struct {
	ID         RecordID     `json:"id"`
	TenantID   string       `json:"tenant_id"`
	SessionID  string       `json:"session_id,omitempty"`
	Provider   string       `json:"provider"`
	Status     RecordStatus `json:"status"`
	OldInput   string       `json:"old_input"`
	NewInput   string       `json:"current_input"`
	Result     string       `json:"result,omitempty"` // JSON string
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
}
