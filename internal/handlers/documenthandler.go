package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/applyforge/applyforge-backend/internal/dtos"
	"github.com/applyforge/applyforge-backend/internal/services"
)

type DocumentHandler struct {
	Documents *services.DocumentService
	Render    *services.RenderService
}

func NewDocumentHandler(d *services.DocumentService, r *services.RenderService) *DocumentHandler {
	return &DocumentHandler{Documents: d, Render: r}
}

func (h *DocumentHandler) CreateVersion(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.VersionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	version, err := h.Documents.CreateVersion(c.Request.Context(), jobID, c.Param("kind"), req.Content, req.TemplateName, req.ParentVersionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (h *DocumentHandler) ListVersions(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	versions, err := h.Documents.ListVersions(c.Request.Context(), jobID, c.Param("kind"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *DocumentHandler) GetCanonical(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.Documents.GetCanonical(c.Request.Context(), jobID, c.Param("kind"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Pin(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	doc, err := h.Documents.Pin(c.Request.Context(), jobID, c.Param("kind"), req.VersionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Unpin(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Documents.Unpin(c.Request.Context(), jobID, c.Param("kind")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenderPDF returns application/pdf bytes for the posted HTML, cached per job.
func (h *DocumentHandler) RenderPDF(c *gin.Context) {
	jobID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dtos.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	pdf, err := h.Render.RenderPDF(c.Request.Context(), jobID, req.HTML)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", pdf)
}
