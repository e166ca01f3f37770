// Package models contains the data models for the application.
package models

import (
	"encoding/json"
	"time"
)

// Default styling applied to a freshly created text overlay.
const (
	DefaultOverlayText = "Your text here"
	DefaultFontSize    = 40
	DefaultTextColor   = "#FFFFFF"
	DefaultBorderWidth = 4
	DefaultOverlayX    = 400.0
	DefaultOverlayY    = 200.0
	MinFontSize        = 20
	MaxFontSize        = 100
)

// TextOverlay is a positioned, styled text block drawn on top of a base image.
// X and Y are the center point of the block in image pixel space, never in
// on-screen display pixels.
type TextOverlay struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	FontSize    int     `json:"fontSize"`
	TextColor   string  `json:"textColor,omitempty"`
	BorderWidth int     `json:"borderWidth,omitempty"`
}

// NewTextOverlay creates an overlay with the default position and styling.
func NewTextOverlay(id string) TextOverlay {
	return TextOverlay{
		ID:          id,
		Text:        DefaultOverlayText,
		X:           DefaultOverlayX,
		Y:           DefaultOverlayY,
		FontSize:    DefaultFontSize,
		TextColor:   DefaultTextColor,
		BorderWidth: DefaultBorderWidth,
	}
}

// Color returns the fill color, defaulting to opaque white when unset.
func (o TextOverlay) Color() string {
	if o.TextColor == "" {
		return DefaultTextColor
	}
	return o.TextColor
}

// Border returns the outline stroke width, defaulting to 4 when unset.
func (o TextOverlay) Border() int {
	if o.BorderWidth <= 0 {
		return DefaultBorderWidth
	}
	return o.BorderWidth
}

// Meme represents a published composite meme in the shared feed.
type Meme struct {
	ID           string        `json:"id"`
	ImageData    string        `json:"imageData"`
	TextOverlays []TextOverlay `json:"textOverlays"`
	CreatedAt    time.Time     `json:"createdAt"`
	Votes        int           `json:"votes"`
}

// MarshalOverlays serializes the overlay list for storage.
func MarshalOverlays(overlays []TextOverlay) (string, error) {
	if overlays == nil {
		overlays = []TextOverlay{}
	}
	data, err := json.Marshal(overlays)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalOverlays deserializes a stored overlay list.
func UnmarshalOverlays(data string) ([]TextOverlay, error) {
	if data == "" {
		return []TextOverlay{}, nil
	}
	var overlays []TextOverlay
	if err := json.Unmarshal([]byte(data), &overlays); err != nil {
		return nil, err
	}
	return overlays, nil
}

// CreateMemeRequest represents the request body for publishing a meme.
type CreateMemeRequest struct {
	ImageData    string        `json:"imageData" binding:"required"`
	TextOverlays []TextOverlay `json:"textOverlays"`
}

// RenderRequest represents the request body for rendering a composite.
type RenderRequest struct {
	ImageData    string        `json:"imageData" binding:"required"`
	TextOverlays []TextOverlay `json:"textOverlays"`
}

// VoteRequest represents the request body for voting on a meme.
type VoteRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// MemeResponse wraps a single meme in the API response.
type MemeResponse struct {
	Data Meme `json:"data"`
}

// MemesResponse wraps multiple memes in the API response.
type MemesResponse struct {
	Data []Meme `json:"data"`
}

// VoteResponse reports the vote count after a successful vote.
type VoteResponse struct {
	MemeID string `json:"memeId"`
	Votes  int    `json:"votes"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
