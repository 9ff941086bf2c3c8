package render

import "context"

// Renderer converts fully-rendered HTML into PDF bytes. Rendering is assumed
// deterministic for identical HTML, which is what makes caching by content
// hash sound.
type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
	Close() error
}
