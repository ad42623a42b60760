package app

import (
	"context"
	"net/http"
	"testing"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projectResponse struct {
	Message string         `json:"message"`
	Project models.Project `json:"project"`
	Error   string         `json:"error"`
}

func TestCreateAndListProjects(t *testing.T) {
	h := newHarness(t, 3)
	user := h.store.putUser(models.User{Email: "dev@example.com"})
	token := h.token(user)

	resp := h.doJSON(http.MethodPost, "/project", token, gin.H{"name": " First ", "description": "one"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created projectResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, "Project created successfully", created.Message)
	assert.Equal(t, "First", created.Project.Name)
	assert.Equal(t, user.ID, created.Project.UserID)

	resp = h.doJSON(http.MethodPost, "/project", token, gin.H{"name": "Second"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = h.doJSON(http.MethodGet, "/projects", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Projects []models.Project `json:"projects"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Projects, 2)
	assert.Equal(t, "Second", list.Projects[0].Name, "newest first")
	assert.Equal(t, "First", list.Projects[1].Name)
}

func TestCreateProjectRequiresName(t *testing.T) {
	h := newHarness(t, 3)
	user := h.store.putUser(models.User{Email: "dev@example.com"})

	resp := h.doJSON(http.MethodPost, "/project", h.token(user), gin.H{"name": "   ", "description": "x"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListProjectsIsOwnerScoped(t *testing.T) {
	h := newHarness(t, 3)
	_, _ = h.seedUser(models.User{})
	other := h.store.putUser(models.User{Email: "other@example.com"})

	resp := h.doJSON(http.MethodGet, "/projects", h.token(other), nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"projects":[]}`, resp.Body.String())
}

func TestGetProjectIncludesHistory(t *testing.T) {
	h := newHarness(t, 3)
	user, project := h.seedUser(models.User{})
	for _, content := range []string{"first", "second"} {
		_, err := h.store.CreateMessage(context.Background(), models.Message{ProjectID: project.ID, Content: content, Type: models.MessageTypeAudio})
		require.NoError(t, err)
	}

	resp := h.doJSON(http.MethodGet, "/project/"+pid(project), h.token(user), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body projectResponse
	decodeBody(t, resp, &body)
	require.Len(t, body.Project.Messages, 2)
	assert.Equal(t, "first", body.Project.Messages[0].Content)
	assert.Equal(t, "second", body.Project.Messages[1].Content)
	assert.Nil(t, body.Project.Messages[0].EnhancedPrompt)
}

func TestGetProjectErrors(t *testing.T) {
	h := newHarness(t, 3)
	user, _ := h.seedUser(models.User{})
	_, foreign := h.seedUser(models.User{})
	token := h.token(user)

	assert.Equal(t, http.StatusBadRequest, h.doJSON(http.MethodGet, "/project/abc", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.doJSON(http.MethodGet, "/project/999", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.doJSON(http.MethodGet, "/project/"+pid(foreign), token, nil).Code)
}

func TestUpdateProject(t *testing.T) {
	h := newHarness(t, 3)
	user, project := h.seedUser(models.User{})

	resp := h.doJSON(http.MethodPatch, "/project/"+pid(project), h.token(user), gin.H{"techStack": "Go, React"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body projectResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Project updated successfully", body.Message)
	assert.Equal(t, "Voice app", body.Project.Name, "untouched fields keep their value")
	require.NotNil(t, body.Project.TechStack)
	assert.Equal(t, "Go, React", *body.Project.TechStack)
}

func TestUpdateProjectRejections(t *testing.T) {
	h := newHarness(t, 3)
	user, project := h.seedUser(models.User{})
	_, foreign := h.seedUser(models.User{})
	token := h.token(user)

	resp := h.doJSON(http.MethodPatch, "/project/"+pid(project), token, gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.doJSON(http.MethodPatch, "/project/"+pid(foreign), token, gin.H{"name": "mine now"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Voice app", h.store.projects[foreign.ID].Name)
}

func TestEnhanceProjectContext(t *testing.T) {
	h := newHarness(t, 3)
	user, project := h.seedUser(models.User{})
	token := h.token(user)

	resp := h.doJSON(http.MethodPatch, "/enhance-project-context", token, gin.H{
		"projectId":          project.ID,
		"projectDescription": "Turns speech into prompts",
		"techStack":          "Go",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body projectResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Project context enhanced successfully", body.Message)
	assert.Equal(t, "Turns speech into prompts", body.Project.Description)

	// Form posts send the id as a string.
	resp = h.doJSON(http.MethodPatch, "/enhance-project-context", token, gin.H{"projectId": pid(project), "name": "Renamed"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Renamed", h.store.projects[project.ID].Name)

	resp = h.doJSON(http.MethodPatch, "/enhance-project-context", token, gin.H{"name": "no id"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestProjectRoutesRequireAuth(t *testing.T) {
	h := newHarness(t, 3)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/project"},
		{http.MethodGet, "/projects"},
		{http.MethodGet, "/project/1"},
		{http.MethodPatch, "/project/1"},
		{http.MethodPatch, "/enhance-project-context"},
	} {
		resp := h.doJSON(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", tc.method, tc.path)
	}
}
