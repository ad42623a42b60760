package models

import "time"

// QuotaExceededResponse is the 402 body clients use to drive the upgrade flow.
type QuotaExceededResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	FreeLimit int    `json:"freeLimit"`
}

// TranscriptHeader is the record sent ahead of the streamed prompt.
type TranscriptHeader struct {
	OriginalTranscript string `json:"originalTranscript"`
}

type MeUser struct {
	ID                 int64              `json:"id"`
	Email              string             `json:"email"`
	Name               string             `json:"name"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time         `json:"currentPeriodEnd"`
}

type MeUsage struct {
	MonthlyTranscriptions int `json:"monthlyTranscriptions"`
	FreeLimit             int `json:"freeLimit"`
	Remaining             int `json:"remaining"`
}

type MeResponse struct {
	User  MeUser  `json:"user"`
	Usage MeUsage `json:"usage"`
}
