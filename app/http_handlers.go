package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/gin-gonic/gin"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	TechStack   *string `json:"techStack"`
}

type enhanceContextRequest struct {
	ProjectID          json.Number `json:"projectId"`
	Name               *string     `json:"name"`
	ProjectDescription *string     `json:"projectDescription"`
	TechStack          *string     `json:"techStack"`
}

// CreateProject starts a new project owned by the caller.
func (s *Server) CreateProject(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondError(c, http.StatusBadRequest, "Please fill in project name")
		return
	}

	project, err := s.store.CreateProject(c.Request.Context(), id.UserID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "create project failed", "user_id", id.UserID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to create project")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Project created successfully", "project": project})
}

// ListProjects returns the caller's projects, newest first.
func (s *Server) ListProjects(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	projects, err := s.store.ListProjects(c.Request.Context(), id.UserID)
	if err != nil {
		s.log.ErrorContext(c.Request.Context(), "list projects failed", "user_id", id.UserID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject returns one project with its full message history.
func (s *Server) GetProject(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	projectID, err := parsePositiveInt(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid project id")
		return
	}

	ctx := c.Request.Context()
	project, err := s.store.GetProject(ctx, projectID, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "Project not found")
			return
		}
		s.log.ErrorContext(ctx, "load project failed", "project_id", projectID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	project.Messages, err = s.store.ListMessages(ctx, project.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "load messages failed", "project_id", projectID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// UpdateProject changes the settings of one of the caller's projects.
func (s *Server) UpdateProject(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	projectID, err := parsePositiveInt(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid project id")
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.applyProjectUpdate(c, projectID, id.UserID, models.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		TechStack:   req.TechStack,
	}, "Project updated successfully")
}

// EnhanceProjectContext is the settings form variant that carries the project
// id in the body.
func (s *Server) EnhanceProjectContext(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req enhanceContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	projectID, err := parsePositiveInt(req.ProjectID.String())
	if err != nil {
		respondError(c, http.StatusBadRequest, "Missing or invalid projectId")
		return
	}

	s.applyProjectUpdate(c, projectID, id.UserID, models.ProjectUpdate{
		Name:        req.Name,
		Description: req.ProjectDescription,
		TechStack:   req.TechStack,
	}, "Project context enhanced successfully")
}

func (s *Server) applyProjectUpdate(c *gin.Context, projectID, userID int64, upd models.ProjectUpdate, message string) {
	upd.Name = trimmed(upd.Name)
	upd.Description = trimmed(upd.Description)
	upd.TechStack = trimmed(upd.TechStack)
	if upd.Name != nil && *upd.Name == "" {
		respondError(c, http.StatusBadRequest, "Project name cannot be empty")
		return
	}

	ctx := c.Request.Context()
	project, err := s.store.UpdateProject(ctx, projectID, userID, upd)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "Project not found or access denied")
			return
		}
		s.log.ErrorContext(ctx, "update project failed", "project_id", projectID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "project": project})
}
