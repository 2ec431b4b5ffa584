package worker

import "time"

// IndexTaskPayload asks the index worker to run the indexing pipeline.
type IndexTaskPayload struct {
	Mode          string    `json:"mode"`
	Trigger       string    `json:"trigger"`
	RequestedAt   time.Time `json:"requested_at"`
	CorrelationID string    `json:"correlation_id"`
}
