package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"

	"github.com/gin-gonic/gin"
)

const (
	audioField     = "audio"
	projectIDField = "projectId"

	quotaExceededCode = "quota_exceeded"
)

func quotaExceededMessage(limit int) string {
	return fmt.Sprintf("You have used all %d free transcriptions for this month. Upgrade to continue.", limit)
}

// Transcribe turns an uploaded voice note into a structured coding prompt.
//
// The response body is the transcript header, the delimiter and then the
// generated prompt, streamed as it is produced. Only a fully delivered prompt
// is stored and counted against the free tier.
func (s *Server) Transcribe(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	file, err := c.FormFile(audioField)
	if err != nil {
		respondError(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	projectID, err := parsePositiveInt(c.PostForm(projectIDField))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Missing or invalid projectId")
		return
	}

	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.log.ErrorContext(ctx, "load user failed", "user_id", id.UserID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}

	decision, err := s.quota.Authorize(ctx, user)
	if err != nil {
		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			recordTranscription(outcomeQuotaExceeded)
			s.log.InfoContext(ctx, "transcription denied", "user_id", user.ID, "used", quotaErr.Used, "limit", quotaErr.Limit)
			c.JSON(http.StatusPaymentRequired, models.QuotaExceededResponse{
				Code:      quotaExceededCode,
				Message:   quotaExceededMessage(quotaErr.Limit),
				FreeLimit: quotaErr.Limit,
			})
			return
		}
		s.log.ErrorContext(ctx, "quota check failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}
	if decision.RolledOver {
		quotaRolloversTotal.Inc()
	}

	audio, err := file.Open()
	if err != nil {
		s.log.ErrorContext(ctx, "open upload failed", "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}
	defer audio.Close()

	start := time.Now()
	transcript, err := s.transcriber.Transcribe(ctx, audio, file.Filename)
	recordUpstream("transcribe", err, time.Since(start).Seconds())
	if err != nil {
		recordTranscription(outcomeTranscriptionFailed)
		s.log.ErrorContext(ctx, "transcription failed", "user_id", user.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}

	project, err := s.store.GetProject(ctx, projectID, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordTranscription(outcomeProjectNotFound)
			respondError(c, http.StatusNotFound, "Project not found")
			return
		}
		s.log.ErrorContext(ctx, "load project failed", "project_id", projectID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}

	history, err := s.store.RecentMessages(ctx, project.ID, HistoryWindow)
	if err != nil {
		s.log.ErrorContext(ctx, "load history failed", "project_id", project.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}

	start = time.Now()
	stream, err := s.generator.Stream(ctx, BuildPromptContext(project, history, transcript))
	if err != nil {
		recordUpstream("generate", err, time.Since(start).Seconds())
		recordTranscription(outcomeGenerationFailed)
		s.log.ErrorContext(ctx, "generation failed", "project_id", project.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to transcribe audio")
		return
	}
	defer stream.Close()

	// No Content-Length: net/http switches to chunked transfer on the first flush.
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	enhanced, err := RelayStream(ctx, c.Writer, transcript, stream)
	recordUpstream("generate", err, time.Since(start).Seconds())
	if err != nil {
		recordTranscription(outcomeStreamAborted)
		s.log.WarnContext(ctx, "prompt stream aborted",
			"user_id", user.ID,
			"project_id", project.ID,
			"client_gone", errors.Is(err, ErrClientGone),
			"partial_bytes", len(enhanced),
			"err", err,
		)
		return
	}

	// Persist even if the client hangs up after the last fragment.
	s.recordCompletion(context.WithoutCancel(ctx), user, project, transcript, enhanced, decision)
}

func (s *Server) recordCompletion(ctx context.Context, user models.User, project models.Project, transcript, enhanced string, decision QuotaDecision) {
	msg, err := s.store.CreateMessage(ctx, models.Message{
		ProjectID:      project.ID,
		Content:        transcript,
		EnhancedPrompt: &enhanced,
		Type:           models.MessageTypeAudio,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "persist message failed", "project_id", project.ID, "err", err)
		return
	}
	recordTranscription(outcomeCompleted)

	if decision.Exempt {
		return
	}
	used, err := s.quota.Consume(ctx, user.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "consume quota failed", "user_id", user.ID, "err", err)
		return
	}
	quotaConsumedTotal.Inc()

	err = s.events.PublishUsage(ctx, models.UsageEvent{
		UserID:     user.ID,
		ProjectID:  project.ID,
		MessageID:  msg.ID,
		Used:       used,
		FreeLimit:  decision.Limit,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.log.WarnContext(ctx, "publish usage event failed", "user_id", user.ID, "err", err)
	}
}
