package models

import "time"

type Project struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TechStack   *string   `json:"techStack"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Messages    []Message `json:"messages,omitempty"`
}

// ProjectUpdate carries the settings fields a client chose to change.
// Nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	TechStack   *string
}
