package canvas

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"

	"github.com/meme-forge/backend/internal/models"
)

const outlineColor = "#000000"

// FontMetrics measures strings against the meme typeface, caching one face
// per font size.
type FontMetrics struct {
	font  *truetype.Font
	mu    sync.Mutex
	faces map[int]font.Face
}

// NewFontMetrics parses the embedded typeface.
func NewFontMetrics() (*FontMetrics, error) {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &FontMetrics{
		font:  f,
		faces: make(map[int]font.Face),
	}, nil
}

// Face returns a cached face for the given font size.
func (fm *FontMetrics) Face(fontSize int) font.Face {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if face, ok := fm.faces[fontSize]; ok {
		return face
	}
	face := truetype.NewFace(fm.font, &truetype.Options{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	fm.faces[fontSize] = face
	return face
}

// Measure returns the rendered pixel width of s at the given font size.
func (fm *FontMetrics) Measure(fontSize int, s string) float64 {
	advance := font.MeasureString(fm.Face(fontSize), s)
	return float64(advance) / 64.0
}

// Renderer draws wrapped, outlined text blocks onto a drawing surface.
// It retains no reference to any surface between calls.
type Renderer struct {
	metrics *FontMetrics
}

// NewRenderer creates a renderer with its own font metrics.
func NewRenderer() (*Renderer, error) {
	metrics, err := NewFontMetrics()
	if err != nil {
		return nil, err
	}
	return &Renderer{metrics: metrics}, nil
}

// Metrics exposes the renderer's measurer so hit-testing can share the exact
// same layout computation.
func (r *Renderer) Metrics() *FontMetrics {
	return r.metrics
}

// RenderOverlay draws the overlay's wrapped text centered on its anchor
// point. Each line is drawn in two passes at the same position: a black
// outline pass first, then the fill, so the fill is never obscured.
func (r *Renderer) RenderOverlay(dc *gg.Context, o models.TextOverlay, maxWidth float64) {
	dc.SetFontFace(r.metrics.Face(o.FontSize))
	layout := LayoutOverlay(o, maxWidth, r.metrics)

	for i, line := range layout.Lines {
		lineY := layout.LineY(i)

		// gg has no text stroking, so the outline is rasterized by
		// drawing the glyphs around a ring of radius borderWidth.
		dc.SetHexColor(outlineColor)
		border := float64(o.Border())
		steps := 16
		for s := 0; s < steps; s++ {
			angle := float64(s) / float64(steps) * 2 * math.Pi
			dx := border * math.Cos(angle)
			dy := border * math.Sin(angle)
			dc.DrawStringAnchored(line, o.X+dx, lineY+dy, 0.5, 0.5)
		}

		dc.SetHexColor(o.Color())
		dc.DrawStringAnchored(line, o.X, lineY, 0.5, 0.5)
	}
}

// Composite draws the base image at the origin of a surface sized to the
// image's native resolution, then every overlay in collection order. Later
// overlays paint over earlier ones.
func (r *Renderer) Composite(img image.Image, overlays []models.TextOverlay) *gg.Context {
	bounds := img.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.DrawImage(img, 0, 0)

	maxWidth := WrapWidth(float64(bounds.Dx()))
	for _, o := range overlays {
		r.RenderOverlay(dc, o, maxWidth)
	}
	return dc
}
