// Package app enforces monthly transcription limits for free-tier users.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
)

// QuotaExceededError is returned when a free-tier user has used up the
// current period.
type QuotaExceededError struct {
	Limit int
	Used  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded (%d/%d)", e.Used, e.Limit)
}

// addMonthClamped moves t one calendar month ahead at the same time of day.
// Days past the end of the target month clamp to its last day (Jan 31 -> Feb 28/29).
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// periodElapsed reports whether the user's metering period needs a rollover.
func periodElapsed(u models.User, now time.Time) bool {
	return u.CurrentPeriodEnd == nil || !now.Before(*u.CurrentPeriodEnd)
}

// QuotaDecision is the outcome of an allowed quota check.
type QuotaDecision struct {
	Exempt     bool
	RolledOver bool
	Used       int
	Limit      int
}

// QuotaPolicy meters transcriptions for users without an active subscription.
type QuotaPolicy struct {
	store UsageStore
	limit int
	now   func() time.Time
}

func NewQuotaPolicy(store UsageStore, freeLimit int, now func() time.Time) *QuotaPolicy {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &QuotaPolicy{store: store, limit: freeLimit, now: now}
}

func (p *QuotaPolicy) Limit() int {
	return p.limit
}

// Refresh applies a pending period rollover and persists it. Subscribed users
// are returned untouched.
func (p *QuotaPolicy) Refresh(ctx context.Context, u models.User) (models.User, bool, error) {
	if u.IsSubscribed() {
		return u, false, nil
	}
	now := p.now()
	if !periodElapsed(u, now) {
		return u, false, nil
	}

	end := addMonthClamped(now)
	if err := p.store.ResetUsage(ctx, u.ID, end); err != nil {
		return u, false, fmt.Errorf("reset usage for user %d: %w", u.ID, err)
	}
	u.MonthlyTranscriptions = models.CountOf(0)
	u.CurrentPeriodEnd = &end
	return u, true, nil
}

// Authorize decides whether u may run one metered transcription now.
// A denial is reported as *QuotaExceededError.
func (p *QuotaPolicy) Authorize(ctx context.Context, u models.User) (QuotaDecision, error) {
	if u.IsSubscribed() {
		return QuotaDecision{Exempt: true, Limit: p.limit}, nil
	}

	u, rolled, err := p.Refresh(ctx, u)
	if err != nil {
		return QuotaDecision{}, err
	}

	used := u.MonthlyTranscriptions.Value()
	if used >= p.limit {
		return QuotaDecision{}, &QuotaExceededError{Limit: p.limit, Used: used}
	}
	return QuotaDecision{RolledOver: rolled, Used: used, Limit: p.limit}, nil
}

// Consume records one completed transcription and returns the new count.
func (p *QuotaPolicy) Consume(ctx context.Context, userID int64) (int, error) {
	used, err := p.store.IncrementUsage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("increment usage for user %d: %w", userID, err)
	}
	return used, nil
}

// Remaining is the number of free transcriptions left, never negative.
func (p *QuotaPolicy) Remaining(u models.User) int {
	left := p.limit - u.MonthlyTranscriptions.Value()
	if left < 0 {
		return 0
	}
	return left
}
