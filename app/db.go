package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// PostgresStore implements Store on database/sql with the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, pings and migrates the database.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	d, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}

	s := &PostgresStore{db: d}
	if err := s.Migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("connected to Postgres", "host", cfg.URL, "db", cfg.Name)
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                     BIGSERIAL PRIMARY KEY,
			email                  TEXT NOT NULL UNIQUE,
			password_hash          TEXT NOT NULL DEFAULT '',
			name                   TEXT,
			subscription_status    TEXT,
			current_period_end     TIMESTAMPTZ,
			monthly_transcriptions INTEGER,
			stripe_customer_id     TEXT UNIQUE,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tech_stack  TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			project_id      BIGINT NOT NULL REFERENCES projects(id),
			content         TEXT NOT NULL,
			enhanced_prompt TEXT,
			type            TEXT NOT NULL DEFAULT 'audio',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS messages_project_created_idx ON messages (project_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS projects_user_idx ON projects (user_id)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = `id, email, password_hash, name, subscription_status, current_period_end,
	monthly_transcriptions, stripe_customer_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u          models.User
		name       sql.NullString
		status     sql.NullString
		periodEnd  sql.NullTime
		used       sql.NullInt64
		customerID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &name, &status, &periodEnd, &used, &customerID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	u.Name = name.String
	u.SubscriptionStatus = models.SubscriptionInactive
	if status.Valid && status.String != "" {
		u.SubscriptionStatus = models.SubscriptionStatus(status.String)
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		u.CurrentPeriodEnd = &t
	}
	if used.Valid {
		u.MonthlyTranscriptions = models.CountOf(int(used.Int64))
	}
	u.StripeCustomerID = customerID.String
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash, name string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns+`;
	`, email, passwordHash, nullIfEmpty(name))

	u, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1;`, email))
}

func (s *PostgresStore) ResetUsage(ctx context.Context, userID int64, periodEnd time.Time) error {
	return s.execOne(ctx, `
		UPDATE users
		SET monthly_transcriptions = 0, current_period_end = $1
		WHERE id = $2;
	`, periodEnd, userID)
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, userID int64) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET monthly_transcriptions = COALESCE(monthly_transcriptions, 0) + 1
		WHERE id = $1
		RETURNING monthly_transcriptions;
	`, userID).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return used, err
}

func (s *PostgresStore) SetStripeCustomer(ctx context.Context, userID int64, customerID string) error {
	return s.execOne(ctx, `
		UPDATE users
		SET stripe_customer_id = $1
		WHERE id = $2;
	`, customerID, userID)
}

func (s *PostgresStore) UpdateSubscriptionByCustomer(ctx context.Context, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error {
	var end sql.NullTime
	if periodEnd != nil {
		end = sql.NullTime{Time: *periodEnd, Valid: true}
	}
	return s.execOne(ctx, `
		UPDATE users
		SET subscription_status = $1, current_period_end = COALESCE($2, current_period_end)
		WHERE stripe_customer_id = $3;
	`, string(status), end, customerID)
}

const projectColumns = `id, user_id, name, description, tech_stack, created_at, updated_at`

func scanProject(row rowScanner) (models.Project, error) {
	var (
		p    models.Project
		tech sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &tech, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	if tech.Valid {
		p.TechStack = &tech.String
	}
	return p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, userID int64, name, description string) (models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		INSERT INTO projects (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING `+projectColumns+`;
	`, userID, name, description))
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID, userID int64) (models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND user_id = $2;
	`, projectID, userID))
}

func (s *PostgresStore) ListProjects(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, userID int64, upd models.ProjectUpdate) (models.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET name = COALESCE($1, name),
			description = COALESCE($2, description),
			tech_stack = COALESCE($3, tech_stack),
			updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING `+projectColumns+`;
	`, nullableString(upd.Name), nullableString(upd.Description), nullableString(upd.TechStack), projectID, userID))
}

const messageColumns = `id, project_id, content, enhanced_prompt, type, created_at`

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		var (
			m        models.Message
			enhanced sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Content, &enhanced, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		if enhanced.Valid {
			m.EnhancedPrompt = &enhanced.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListMessages(ctx context.Context, projectID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC;
	`, projectID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *PostgresStore) RecentMessages(ctx context.Context, projectID int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT `+messageColumns+`
			FROM messages
			WHERE project_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC;
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.Type == "" {
		msg.Type = models.MessageTypeAudio
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (project_id, content, enhanced_prompt, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at;
	`, msg.ProjectID, msg.Content, nullableString(msg.EnhancedPrompt), msg.Type).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
