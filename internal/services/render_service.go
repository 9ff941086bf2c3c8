package services

import (
	"context"
	"net/http"

	"github.com/applyforge/applyforge-backend/internal/apierr"
	"github.com/applyforge/applyforge-backend/internal/logger"
	"github.com/applyforge/applyforge-backend/internal/render"
)

// RenderService turns rendered document HTML into PDF bytes through the
// per-job LRU cache. The renderer may be nil when the browser failed to boot;
// every other endpoint keeps working and rendering reports a typed error.
type RenderService struct {
	Jobs     *JobService
	Renderer render.Renderer
	Cache    *render.Cache
	log      *logger.Logger
}

func NewRenderService(jobs *JobService, renderer render.Renderer, cache *render.Cache, log *logger.Logger) *RenderService {
	return &RenderService{
		Jobs:     jobs,
		Renderer: renderer,
		Cache:    cache,
		log:      log.With("service", "RenderService"),
	}
}

// RenderPDF renders HTML for a job, serving byte-identical output from cache
// when the same HTML was rendered before.
func (s *RenderService) RenderPDF(ctx context.Context, jobID uint, html string) ([]byte, error) {
	if _, err := s.Jobs.Get(ctx, jobID); err != nil {
		return nil, err
	}
	if html == "" {
		return nil, apierr.Validation("html must not be empty")
	}
	if s.Renderer == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "renderer_unavailable", nil)
	}

	pdf, hit, err := s.Cache.GetOrRender(ctx, jobID, html, s.Renderer.RenderHTMLToPDF)
	if err != nil {
		return nil, err
	}
	s.log.Debug("rendered pdf", "job_id", jobID, "cache_hit", hit, "bytes", len(pdf))
	return pdf, nil
}
