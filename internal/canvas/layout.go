// Package canvas implements the text overlay layout, rendering and
// hit-testing engine for a rectangular image surface.
package canvas

import (
	"strings"

	"github.com/meme-forge/backend/internal/models"
)

const (
	// lineHeightFactor converts a font size into the vertical advance
	// between wrapped lines.
	lineHeightFactor = 1.2

	// wrapWidthFactor keeps wrapped text inside an 85% margin of the
	// surface so lines do not clip at the edges.
	wrapWidthFactor = 0.85
)

// MeasureFunc returns the rendered pixel width of a string under the
// currently configured font.
type MeasureFunc func(s string) float64

// Measurer reports the rendered pixel width of a string at a given font size.
type Measurer interface {
	Measure(fontSize int, s string) float64
}

// WrapWidth returns the maximum line width for a surface of the given width.
func WrapWidth(surfaceWidth float64) float64 {
	return surfaceWidth * wrapWidthFactor
}

// Wrap splits text into lines no wider than maxWidth, breaking greedily on
// spaces. A single word wider than maxWidth is emitted as its own
// overflowing line, never split mid-word. The output is deterministic for a
// fixed (text, maxWidth, measure).
func Wrap(text string, maxWidth float64, measure MeasureFunc) []string {
	words := strings.Split(text, " ")
	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		candidate := current + " " + word
		if measure(candidate) < maxWidth {
			current = candidate
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

// BlockLayout is the computed extent of a wrapped overlay text block.
// The renderer and the hit-tester both derive their geometry from it, so
// the visible text and the clickable area cannot diverge.
type BlockLayout struct {
	Lines      []string
	LineHeight float64
	Width      float64
	Height     float64
	StartY     float64
}

// LayoutOverlay wraps the overlay's text at maxWidth and computes the block
// extent centered on the overlay's anchor point.
func LayoutOverlay(o models.TextOverlay, maxWidth float64, m Measurer) BlockLayout {
	measure := func(s string) float64 {
		return m.Measure(o.FontSize, s)
	}

	lines := Wrap(o.Text, maxWidth, measure)
	lineHeight := float64(o.FontSize) * lineHeightFactor

	var width float64
	for _, line := range lines {
		if w := measure(line); w > width {
			width = w
		}
	}
	height := float64(len(lines)) * lineHeight

	return BlockLayout{
		Lines:      lines,
		LineHeight: lineHeight,
		Width:      width,
		Height:     height,
		StartY:     o.Y - height/2 + lineHeight/2,
	}
}

// LineY returns the vertical center of the i-th line of the block.
func (b BlockLayout) LineY(i int) float64 {
	return b.StartY + float64(i)*b.LineHeight
}
