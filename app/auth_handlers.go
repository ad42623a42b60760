// Package app provides public health, account and identity endpoints.
package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
	"github.com/TECHINNNNNNNN/syntaxvoice/auth"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a session token for it.
func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Please fill in email and password")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "Please fill in email and password")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "hash password failed", "err", err)
		respondError(c, http.StatusBadRequest, "Failed to register user")
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), email, hash, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respondError(c, http.StatusBadRequest, "User already exists")
			return
		}
		s.log.ErrorContext(c.Request.Context(), "create user failed", "err", err)
		respondError(c, http.StatusBadRequest, "Failed to register user")
		return
	}

	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "issue token failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"user":    user.Public(),
	})
}

// Login checks credentials and returns a fresh session token.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Please fill in email and password")
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "Please fill in email and password")
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusBadRequest, "User does not exist")
			return
		}
		s.log.ErrorContext(c.Request.Context(), "load user failed", "err", err)
		respondError(c, http.StatusBadRequest, "Failed to login user")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(c, http.StatusBadRequest, "Invalid password")
		return
	}

	token, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "issue token failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to login user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user.Public(),
	})
}

// Me returns the account and current-period usage of the caller. A pending
// period rollover is applied first so the numbers are current.
func (s *Server) Me(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.log.ErrorContext(ctx, "load user failed", "user_id", id.UserID, "err", err)
		respondError(c, http.StatusInternalServerError, "failed to load user")
		return
	}

	user, rolled, err := s.quota.Refresh(ctx, user)
	if err != nil {
		s.log.ErrorContext(ctx, "usage rollover failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "failed to load user")
		return
	}
	if rolled {
		quotaRolloversTotal.Inc()
	}

	c.JSON(http.StatusOK, models.MeResponse{
		User: models.MeUser{
			ID:                 user.ID,
			Email:              user.Email,
			Name:               user.Name,
			SubscriptionStatus: user.SubscriptionStatus,
			CurrentPeriodEnd:   user.CurrentPeriodEnd,
		},
		Usage: models.MeUsage{
			MonthlyTranscriptions: user.MonthlyTranscriptions.Value(),
			FreeLimit:             s.quota.Limit(),
			Remaining:             s.quota.Remaining(user),
		},
	})
}
