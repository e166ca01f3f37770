package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()

	var buf bytes.Buffer
	err := png.Encode(&buf, solidImage(w, h, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	assert.NoError(t, err)

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()

	renderer, err := NewRenderer()
	assert.NoError(t, err)
	return NewCompositor(renderer, zap.NewNop())
}

func TestCompositor_CompositeWithoutImage(t *testing.T) {
	c := newTestCompositor(t)

	_, err := c.Composite(nil)
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestCompositor_LoadAndComposite(t *testing.T) {
	c := newTestCompositor(t)

	err := c.Load(context.Background(), pngDataURL(t, 320, 240))
	assert.NoError(t, err)

	overlays := []models.TextOverlay{
		{ID: "a", Text: "HELLO", X: 160, Y: 120, FontSize: 40},
	}
	img, err := c.Composite(overlays)
	assert.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())
}

func TestCompositor_LoadFailureKeepsCurrentImage(t *testing.T) {
	c := newTestCompositor(t)

	err := c.Load(context.Background(), pngDataURL(t, 100, 80))
	assert.NoError(t, err)

	err = c.Load(context.Background(), "data:image/png;base64,not-base64!")
	assert.Error(t, err)

	img, err := c.Composite(nil)
	assert.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestCompositor_StaleLoadDiscarded(t *testing.T) {
	c := newTestCompositor(t)

	older := image.NewRGBA(image.Rect(0, 0, 10, 10))
	newer := image.NewRGBA(image.Rect(0, 0, 20, 20))

	// Two loads start; the first is still in flight when the second
	// finishes, so only the second may commit.
	firstGen := c.nextGen()
	secondGen := c.nextGen()

	assert.True(t, c.commit(secondGen, newer))
	assert.False(t, c.commit(firstGen, older))

	img, err := c.Composite(nil)
	assert.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestCompositor_LaterCommitReplacesImage(t *testing.T) {
	c := newTestCompositor(t)

	first := c.nextGen()
	assert.True(t, c.commit(first, image.NewRGBA(image.Rect(0, 0, 10, 10))))

	second := c.nextGen()
	assert.True(t, c.commit(second, image.NewRGBA(image.Rect(0, 0, 30, 30))))

	img, err := c.Composite(nil)
	assert.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
}
