package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/applyforge/applyforge-backend/internal/dtos"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/services"
)

type IntakeHandler struct {
	Intake *services.IntakeService
	log    *logger.Logger
}

func NewIntakeHandler(i *services.IntakeService, log *logger.Logger) *IntakeHandler {
	return &IntakeHandler{Intake: i, log: log.With("handler", "IntakeHandler")}
}

func (h *IntakeHandler) Open(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Intake.Open(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *IntakeHandler) GetByJob(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Intake.GetByJob(c.Request.Context(), jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Advance moves 1 -> 2, then kicks analysis generation off the request path.
// EnsureAnalyses is idempotent, so a failed run resumes on the next visit.
func (h *IntakeHandler) Advance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Intake.AdvanceToStep2(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	go func(sessionID uint) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := h.Intake.EnsureAnalyses(ctx, sessionID); err != nil {
			h.log.Warn("background analysis generation failed", "session_id", sessionID, "err", err)
		}
	}(session.ID)

	c.JSON(http.StatusOK, session)
}

// EndConversation moves 2 -> 3 once the refinement loop is done.
func (h *IntakeHandler) EndConversation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Intake.AdvanceToStep3(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *IntakeHandler) Complete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Intake.Complete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Analyses regenerates on demand: useful after an invalidation, and safe to
// call any time because generation skips fields that are already present.
func (h *IntakeHandler) Analyses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Intake.EnsureAnalyses(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	session, err := h.Intake.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gap_analysis":         session.GapAnalysis,
		"stakeholder_analysis": session.StakeholderAnalysis,
	})
}

func (h *IntakeHandler) AddMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.IntakeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	msg, err := h.Intake.AddMessage(c.Request.Context(), id, req.Role, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *IntakeHandler) ListMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	messages, err := h.Intake.ListMessages(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
