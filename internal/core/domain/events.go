package domain

import "time"

const (
	EventStageClassified = "classified"
	EventStagePlanned    = "planned"
	EventStagePath       = "path"
	EventStageFused      = "fused"
)

// ProgressEvent is a best-effort per-stage notification published while a
// request is processed. Delivery is fire-and-forget; failures never affect
// the owning request.
type ProgressEvent struct {
	RequestID string        `json:"request_id"`
	Stage     string        `json:"stage"`
	Path      RetrievalPath `json:"path,omitempty"`
	Status    string        `json:"status,omitempty"`
	Hits      int           `json:"hits,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	ElapsedMS float64       `json:"elapsed_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
