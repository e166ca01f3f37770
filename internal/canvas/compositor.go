package canvas

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

// ErrNoImage is returned when a composite is requested before any base
// image has loaded successfully.
var ErrNoImage = errors.New("no base image loaded")

// Compositor owns the currently loaded base image and redraws the full
// surface on every composite. Loads are guarded by a monotonic generation
// counter so a slow, stale load can never overwrite the image committed by
// a newer request.
type Compositor struct {
	renderer *Renderer
	loader   *Loader
	logger   *zap.Logger

	gen atomic.Uint64

	mu      sync.Mutex
	current image.Image
}

// NewCompositor creates a compositor around the given renderer.
func NewCompositor(renderer *Renderer, logger *zap.Logger) *Compositor {
	return &Compositor{
		renderer: renderer,
		loader:   NewLoader(),
		logger:   logger,
	}
}

// Load resolves src into the current base image. If a newer Load started
// while this one was in flight, the result is discarded and the newer image
// wins. On failure the current image is left untouched.
func (c *Compositor) Load(ctx context.Context, src string) error {
	gen := c.nextGen()

	img, err := c.loader.Load(ctx, src)
	if err != nil {
		return err
	}

	if !c.commit(gen, img) {
		c.logger.Debug("Discarded stale image load", zap.Uint64("generation", gen))
		return nil
	}

	bounds := img.Bounds()
	c.logger.Info("Loaded base image",
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
	)
	return nil
}

// nextGen reserves a load generation.
func (c *Compositor) nextGen() uint64 {
	return c.gen.Add(1)
}

// commit installs img if gen is still the most recent load. Returns false
// when the load was superseded.
func (c *Compositor) commit(gen uint64, img image.Image) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen.Load() {
		return false
	}
	c.current = img
	return true
}

// Composite redraws the full surface from the current image and the given
// overlays. The redraw is never incremental.
func (c *Compositor) Composite(overlays []models.TextOverlay) (image.Image, error) {
	c.mu.Lock()
	img := c.current
	c.mu.Unlock()

	if img == nil {
		return nil, ErrNoImage
	}
	return c.renderer.Composite(img, overlays).Image(), nil
}

// EncodePNG encodes a composite for export as a downloadable PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
