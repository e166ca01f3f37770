package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meme-forge/backend/internal/models"
)

// The surface is rendered at half its native size, so every pointer
// coordinate doubles on the way into image space.
var halfScaleView = Viewport{
	DisplayWidth:  400,
	DisplayHeight: 200,
	NativeWidth:   800,
	NativeHeight:  400,
}

func TestViewport_ToImage(t *testing.T) {
	x, y := halfScaleView.ToImage(200, 100)

	assert.InDelta(t, 400.0, x, 0.001)
	assert.InDelta(t, 200.0, y, 0.001)
}

func TestDrag_SelectAndMove(t *testing.T) {
	overlays := []models.TextOverlay{
		{ID: "a", Text: "HELLOHELLO", X: 400, Y: 200, FontSize: 40},
	}
	d := NewDragController(charMeasurer{})

	id, ok := d.PointerDown(overlays, 200, 100, halfScaleView)
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	assert.True(t, d.Dragging())

	selected, ok := d.Selected()
	assert.True(t, ok)
	assert.Equal(t, "a", selected)

	move, ok := d.PointerMove(205, 105, halfScaleView)
	assert.True(t, ok)
	assert.Equal(t, "a", move.OverlayID)
	assert.InDelta(t, 410.0, move.X, 0.001)
	assert.InDelta(t, 210.0, move.Y, 0.001)
}

func TestDrag_PreservesGrabOffset(t *testing.T) {
	overlays := []models.TextOverlay{
		{ID: "a", Text: "HELLOHELLO", X: 400, Y: 200, FontSize: 40},
	}
	d := NewDragController(charMeasurer{})

	// Grab the block slightly off its anchor; the offset must carry
	// through every move so the block does not jump under the pointer.
	_, ok := d.PointerDown(overlays, 201, 101, halfScaleView)
	assert.True(t, ok)

	move, ok := d.PointerMove(210, 110, halfScaleView)
	assert.True(t, ok)
	assert.InDelta(t, 418.0, move.X, 0.001)
	assert.InDelta(t, 218.0, move.Y, 0.001)
}

func TestDrag_MissClearsSelection(t *testing.T) {
	overlays := []models.TextOverlay{
		{ID: "a", Text: "HELLOHELLO", X: 400, Y: 200, FontSize: 40},
	}
	d := NewDragController(charMeasurer{})

	_, ok := d.PointerDown(overlays, 200, 100, halfScaleView)
	assert.True(t, ok)

	id, ok := d.PointerDown(overlays, 10, 10, halfScaleView)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.False(t, d.Dragging())

	_, ok = d.Selected()
	assert.False(t, ok)
}

func TestDrag_PointerUpIsIdempotent(t *testing.T) {
	overlays := []models.TextOverlay{
		{ID: "a", Text: "HELLOHELLO", X: 400, Y: 200, FontSize: 40},
	}
	d := NewDragController(charMeasurer{})

	_, ok := d.PointerDown(overlays, 200, 100, halfScaleView)
	assert.True(t, ok)

	d.PointerUp()
	d.PointerUp()

	assert.False(t, d.Dragging())
	_, ok = d.PointerMove(205, 105, halfScaleView)
	assert.False(t, ok)

	// Ending a drag keeps the overlay selected.
	selected, ok := d.Selected()
	assert.True(t, ok)
	assert.Equal(t, "a", selected)
}

func TestDrag_MoveWhileIdle(t *testing.T) {
	d := NewDragController(charMeasurer{})

	_, ok := d.PointerMove(100, 100, halfScaleView)
	assert.False(t, ok)
}
