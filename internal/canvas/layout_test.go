package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meme-forge/backend/internal/models"
)

// charMeasurer measures strings by character count, ignoring the font size.
// It keeps layout tests independent of any real typeface.
type charMeasurer struct{}

func (charMeasurer) Measure(fontSize int, s string) float64 {
	return float64(len(s))
}

func charWidth(s string) float64 {
	return float64(len(s))
}

func TestWrap_SingleLine(t *testing.T) {
	lines := Wrap("hello world", 100, charWidth)

	assert.Equal(t, []string{"hello world"}, lines)
}

func TestWrap_GreedyBreaks(t *testing.T) {
	lines := Wrap("THE QUICK BROWN FOX", 10, charWidth)

	assert.Equal(t, []string{"THE QUICK", "BROWN FOX"}, lines)
}

func TestWrap_LongWordNotSplit(t *testing.T) {
	lines := Wrap("hi supercalifragilistic yo", 5, charWidth)

	// The oversized word overflows on its own line instead of being split.
	assert.Equal(t, []string{"hi", "supercalifragilistic", "yo"}, lines)
}

func TestWrap_EmptyText(t *testing.T) {
	lines := Wrap("", 10, charWidth)

	assert.Equal(t, []string{""}, lines)
}

func TestWrap_Deterministic(t *testing.T) {
	first := Wrap("one two three four five six", 12, charWidth)
	second := Wrap("one two three four five six", 12, charWidth)

	assert.Equal(t, first, second)
}

func TestWrapWidth(t *testing.T) {
	assert.InDelta(t, 680.0, WrapWidth(800), 0.001)
}

func TestLayoutOverlay_BlockExtent(t *testing.T) {
	o := models.TextOverlay{
		ID:       "a",
		Text:     "THE QUICK BROWN FOX",
		X:        400,
		Y:        200,
		FontSize: 40,
	}

	layout := LayoutOverlay(o, 10, charMeasurer{})

	assert.Equal(t, []string{"THE QUICK", "BROWN FOX"}, layout.Lines)
	assert.InDelta(t, 48.0, layout.LineHeight, 0.001)
	assert.InDelta(t, 9.0, layout.Width, 0.001)
	assert.InDelta(t, 96.0, layout.Height, 0.001)

	// The block is centered on the anchor: startY sits half the block
	// above it, shifted down to the first line's center.
	assert.InDelta(t, 176.0, layout.StartY, 0.001)
	assert.InDelta(t, 176.0, layout.LineY(0), 0.001)
	assert.InDelta(t, 224.0, layout.LineY(1), 0.001)
}

func TestLayoutOverlay_WidthIsWidestLine(t *testing.T) {
	o := models.TextOverlay{
		ID:       "a",
		Text:     "tiny but the second line is wider",
		X:        100,
		Y:        100,
		FontSize: 20,
	}

	layout := LayoutOverlay(o, 16, charMeasurer{})

	for _, line := range layout.Lines {
		assert.LessOrEqual(t, charWidth(line), layout.Width)
	}
}
