package models

import "time"

// UsageEvent is published to the usage queue after a metered transcription
// has been recorded.
type UsageEvent struct {
	UserID     int64     `json:"user_id"`
	ProjectID  int64     `json:"project_id"`
	MessageID  int64     `json:"message_id"`
	Used       int       `json:"used"`       // counter value after the increment
	FreeLimit  int       `json:"free_limit"` // limit in force at the time
	OccurredAt time.Time `json:"occurred_at"`
}
