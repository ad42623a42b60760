// Package models defines users, projects, messages and usage tracking fields.
package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Count is a usage counter that may not have been initialized yet.
type Count struct {
	N     int
	Valid bool
}

// CountOf returns an initialized counter holding n.
func CountOf(n int) Count {
	return Count{N: n, Valid: true}
}

// Value collapses an uninitialized counter to zero.
func (c Count) Value() int {
	if !c.Valid {
		return 0
	}
	return c.N
}

type User struct {
	ID                    int64              `db:"id" json:"id"`
	Email                 string             `db:"email" json:"email"`
	Name                  string             `db:"name" json:"name"`
	PasswordHash          string             `db:"password_hash" json:"-"`
	SubscriptionStatus    SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus"`
	CurrentPeriodEnd      *time.Time         `db:"current_period_end" json:"currentPeriodEnd"`
	MonthlyTranscriptions Count              `db:"monthly_transcriptions" json:"-"`
	StripeCustomerID      string             `db:"stripe_customer_id" json:"-"`
	CreatedAt             time.Time          `db:"created_at" json:"-"`
}

// IsSubscribed reports whether the user holds an active paid subscription.
func (u User) IsSubscribed() bool {
	return u.SubscriptionStatus == SubscriptionActive
}

// PublicUser is the account shape returned by register and login.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
