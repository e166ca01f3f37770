package canvas

import (
	"github.com/meme-forge/backend/internal/models"
)

// Viewport maps display-space pointer coordinates onto the surface's native
// image pixel space. The drawing surface may be scaled by the host layout,
// so pointer events must be rescaled at the input boundary.
type Viewport struct {
	DisplayWidth  float64
	DisplayHeight float64
	NativeWidth   float64
	NativeHeight  float64
}

// ToImage converts a display-space point to image pixel space.
func (v Viewport) ToImage(x, y float64) (float64, float64) {
	return x * v.NativeWidth / v.DisplayWidth, y * v.NativeHeight / v.DisplayHeight
}

// Move is a position update emitted while dragging an overlay.
type Move struct {
	OverlayID string
	X         float64
	Y         float64
}

// DragController translates pointer events into overlay selection and
// position updates. It has two states, idle and dragging; releasing the
// pointer always returns it to idle. Only the dragged overlay's id is
// retained, so unrelated overlay-list mutations cannot cancel a drag.
type DragController struct {
	measurer Measurer

	dragging  bool
	overlayID string
	offsetX   float64
	offsetY   float64
	selected  string
}

// NewDragController creates an idle controller using the given measurer for
// hit-testing.
func NewDragController(m Measurer) *DragController {
	return &DragController{measurer: m}
}

// PointerDown hit-tests the pointer position. On a hit it marks the overlay
// selected, records the drag offset between pointer and anchor, and enters
// the dragging state. On a miss it clears the selection and stays idle.
func (d *DragController) PointerDown(overlays []models.TextOverlay, displayX, displayY float64, view Viewport) (string, bool) {
	px, py := view.ToImage(displayX, displayY)
	maxWidth := WrapWidth(view.NativeWidth)

	id, ok := HitTest(overlays, px, py, maxWidth, d.measurer)
	if !ok {
		d.PointerUp()
		d.selected = ""
		return "", false
	}

	for _, o := range overlays {
		if o.ID == id {
			d.dragging = true
			d.overlayID = id
			d.offsetX = px - o.X
			d.offsetY = py - o.Y
			break
		}
	}
	d.selected = id
	return id, true
}

// PointerMove emits the dragged overlay's new anchor position. It reports
// false while idle.
func (d *DragController) PointerMove(displayX, displayY float64, view Viewport) (Move, bool) {
	if !d.dragging {
		return Move{}, false
	}

	px, py := view.ToImage(displayX, displayY)
	return Move{
		OverlayID: d.overlayID,
		X:         px - d.offsetX,
		Y:         py - d.offsetY,
	}, true
}

// PointerUp returns the controller to idle. It is safe to call in any
// state, including when the pointer leaves the surface mid-drag.
func (d *DragController) PointerUp() {
	d.dragging = false
	d.overlayID = ""
	d.offsetX = 0
	d.offsetY = 0
}

// Dragging reports whether a drag is in progress.
func (d *DragController) Dragging() bool {
	return d.dragging
}

// Selected returns the currently selected overlay id, if any.
func (d *DragController) Selected() (string, bool) {
	return d.selected, d.selected != ""
}
