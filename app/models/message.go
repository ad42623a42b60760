package models

import "time"

const MessageTypeAudio = "audio"

// Message is one transcription turn of a project conversation. Messages are
// written once and never updated.
type Message struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"projectId"`
	Content        string    `json:"content"`
	EnhancedPrompt *string   `json:"enhancedPrompt"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}
