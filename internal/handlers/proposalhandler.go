package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/applyforge/applyforge-backend/internal/dtos"
	"github.com/applyforge/applyforge-backend/internal/services"
)

type ProposalHandler struct {
	Proposals  *services.ProposalService
	Extraction *services.ExtractionService
}

func NewProposalHandler(p *services.ProposalService, e *services.ExtractionService) *ProposalHandler {
	return &ProposalHandler{Proposals: p, Extraction: e}
}

// Extract runs the transcript through the model and creates pending
// proposals. Degraded outcomes are still 200s: the caller gets the reason and
// an empty list instead of a failure that would block the flow.
func (h *ProposalHandler) Extract(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	outcome, err := h.Extraction.ExtractProposals(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *ProposalHandler) ListGrouped(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	groups, err := h.Proposals.ListGrouped(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *ProposalHandler) Edit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.ProposalEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	p, err := h.Proposals.Edit(c.Request.Context(), id, req.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProposalHandler) Accept(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.Proposals.Accept(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProposalHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.Proposals.Reject(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProposalHandler) Revert(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.Proposals.Revert(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
