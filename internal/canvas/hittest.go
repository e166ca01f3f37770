package canvas

import (
	"github.com/meme-forge/backend/internal/models"
)

// HitTest returns the id of the topmost overlay whose block bounding box
// contains the point (x, y) in image pixel space. Overlays are scanned from
// last to first so the overlay drawn on top wins on overlapping clicks. The
// box is the same wrapped-block extent the renderer draws, computed through
// LayoutOverlay.
func HitTest(overlays []models.TextOverlay, x, y, maxWidth float64, m Measurer) (string, bool) {
	for i := len(overlays) - 1; i >= 0; i-- {
		o := overlays[i]
		layout := LayoutOverlay(o, maxWidth, m)

		left := o.X - layout.Width/2
		right := o.X + layout.Width/2
		top := o.Y - layout.Height/2
		bottom := o.Y + layout.Height/2

		if x >= left && x <= right && y >= top && y <= bottom {
			return o.ID, true
		}
	}
	return "", false
}
