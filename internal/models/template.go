package models

import "time"

// TemplateRecord is a meme template fetched from an external source and
// cached for reuse. OriginalURL is the deduplication key: no two stored
// records may share the same non-empty OriginalURL.
type TemplateRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	OriginalURL string    `json:"originalUrl"`
	ImageData   string    `json:"imageData"`
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath"`
	Metadata    string    `json:"metadata"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Votes       int       `json:"votes"`
}

// TemplateResponse wraps a single template in the API response.
type TemplateResponse struct {
	Data TemplateRecord `json:"data"`
}

// TemplatesResponse wraps multiple templates in the API response.
type TemplatesResponse struct {
	Data []TemplateRecord `json:"data"`
}

// FetchSummary reports the outcome of a template fetch-and-save run.
// Individual conversion or save failures are counted, not fatal.
type FetchSummary struct {
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	Saved      int    `json:"saved"`
	Duplicates int    `json:"duplicates"`
	Failed     int    `json:"failed"`
}

// CaptionRequest represents the request body for AI caption generation.
type CaptionRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// CaptionsResponse wraps generated captions in the API response.
type CaptionsResponse struct {
	Data []string `json:"data"`
}
