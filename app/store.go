package app

import (
	"context"
	"errors"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// UsageStore persists the per-user metering state.
type UsageStore interface {
	// ResetUsage zeroes the counter and starts a period ending at periodEnd.
	ResetUsage(ctx context.Context, userID int64, periodEnd time.Time) error
	// IncrementUsage adds one to the counter, treating NULL as zero, and
	// returns the new value.
	IncrementUsage(ctx context.Context, userID int64) (int, error)
}

// Store is the persistence surface of the service.
type Store interface {
	UsageStore

	CreateUser(ctx context.Context, email, passwordHash, name string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SetStripeCustomer(ctx context.Context, userID int64, customerID string) error
	UpdateSubscriptionByCustomer(ctx context.Context, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error

	CreateProject(ctx context.Context, userID int64, name, description string) (models.Project, error)
	GetProject(ctx context.Context, projectID, userID int64) (models.Project, error)
	ListProjects(ctx context.Context, userID int64) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID int64, upd models.ProjectUpdate) (models.Project, error)

	// ListMessages returns every message of a project, oldest first.
	ListMessages(ctx context.Context, projectID int64) ([]models.Message, error)
	// RecentMessages returns at most limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, projectID int64, limit int) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
}
