package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
)

// memoryStore is an in-process Store used by handler tests.
type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	seq      int
	base     time.Time
	users    map[int64]models.User
	projects map[int64]models.Project
	messages []models.Message

	createMessageErr error
	incrementErr     error
	resets           int
}

var _ Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		base:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    map[int64]models.User{},
		projects: map[int64]models.Project{},
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// tick hands out strictly increasing timestamps.
func (m *memoryStore) tick() time.Time {
	m.seq++
	return m.base.Add(time.Duration(m.seq) * time.Second)
}

func (m *memoryStore) putUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = models.SubscriptionInactive
	}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) user(id int64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memoryStore) messagesFor(projectID int64) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ProjectID == projectID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *memoryStore) CreateUser(_ context.Context, email, passwordHash, name string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return models.User{}, ErrEmailTaken
		}
	}
	u := models.User{
		ID:                 m.id(),
		Email:              email,
		PasswordHash:       passwordHash,
		Name:               name,
		SubscriptionStatus: models.SubscriptionInactive,
		CreatedAt:          m.tick(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryStore) GetUserByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *memoryStore) ResetUsage(_ context.Context, userID int64, periodEnd time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.MonthlyTranscriptions = models.CountOf(0)
	u.CurrentPeriodEnd = &periodEnd
	m.users[userID] = u
	m.resets++
	return nil
}

func (m *memoryStore) IncrementUsage(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	u, ok := m.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	u.MonthlyTranscriptions = models.CountOf(u.MonthlyTranscriptions.Value() + 1)
	m.users[userID] = u
	return u.MonthlyTranscriptions.N, nil
}

func (m *memoryStore) SetStripeCustomer(_ context.Context, userID int64, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.StripeCustomerID = customerID
	m.users[userID] = u
	return nil
}

func (m *memoryStore) UpdateSubscriptionByCustomer(_ context.Context, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.StripeCustomerID != customerID {
			continue
		}
		u.SubscriptionStatus = status
		if periodEnd != nil {
			end := *periodEnd
			u.CurrentPeriodEnd = &end
		}
		m.users[id] = u
		return nil
	}
	return ErrNotFound
}

func (m *memoryStore) CreateProject(_ context.Context, userID int64, name, description string) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	p := models.Project{
		ID:          m.id(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryStore) GetProject(_ context.Context, projectID, userID int64) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok || p.UserID != userID {
		return models.Project{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) ListProjects(_ context.Context, userID int64) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Project{}
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryStore) UpdateProject(_ context.Context, projectID, userID int64, upd models.ProjectUpdate) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok || p.UserID != userID {
		return models.Project{}, ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.TechStack != nil {
		tech := *upd.TechStack
		p.TechStack = &tech
	}
	p.UpdatedAt = m.tick()
	m.projects[projectID] = p
	return p, nil
}

func (m *memoryStore) sortedMessages(projectID int64) []models.Message {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ProjectID == projectID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memoryStore) ListMessages(_ context.Context, projectID int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedMessages(projectID)
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

func (m *memoryStore) RecentMessages(_ context.Context, projectID int64, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedMessages(projectID)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryStore) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createMessageErr != nil {
		return models.Message{}, m.createMessageErr
	}
	msg.ID = m.id()
	msg.CreatedAt = m.tick()
	m.messages = append(m.messages, msg)
	return msg, nil
}
