// Package handler provides the business logic handlers for meme, vote and
// template operations.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/cache"
	"github.com/meme-forge/backend/internal/canvas"
	"github.com/meme-forge/backend/internal/caption"
	"github.com/meme-forge/backend/internal/config"
	"github.com/meme-forge/backend/internal/database"
	"github.com/meme-forge/backend/internal/models"
	"github.com/meme-forge/backend/internal/templates"
)

// Handler provides HTTP handlers for meme operations.
type Handler struct {
	repo     database.Repository
	cache    cache.Cache
	renderer *canvas.Renderer
	loader   *canvas.Loader
	fetcher  *templates.Fetcher
	sources  map[string]templates.Source
	captions *caption.Client
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler creates a new meme handler.
func NewHandler(
	repo database.Repository,
	cacheClient cache.Cache,
	renderer *canvas.Renderer,
	fetcher *templates.Fetcher,
	sources map[string]templates.Source,
	captions *caption.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cacheClient,
		renderer: renderer,
		loader:   canvas.NewLoader(),
		fetcher:  fetcher,
		sources:  sources,
		captions: captions,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers the handler routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/memes", h.CreateMeme)
	rg.GET("/memes", h.ListMemes)
	rg.GET("/memes/:id", h.GetMeme)
	rg.DELETE("/memes/:id", h.DeleteMeme)
	rg.POST("/memes/:id/vote", h.Vote)
	rg.POST("/memes/render", h.Render)
	rg.GET("/templates", h.ListTemplates)
	rg.POST("/templates/fetch", h.FetchTemplates)
	rg.POST("/captions", h.GenerateCaptions)
}

// CreateMeme handles publishing a composite meme to the shared feed.
// @Summary Publish meme
// @Description Publish a composite meme with its text overlays
// @Tags memes
// @Accept json
// @Produce json
// @Param meme body models.CreateMemeRequest true "Meme data"
// @Success 201 {object} models.MemeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/memes [post]
func (h *Handler) CreateMeme(c *gin.Context) {
	var req models.CreateMemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid create request", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	meme, err := h.repo.CreateMeme(ctx, &req)
	if err != nil {
		h.logger.Error("Failed to create meme", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to create meme",
		})
		return
	}

	// Cache the new meme
	_ = h.cache.SetMeme(ctx, meme)

	c.JSON(http.StatusCreated, models.MemeResponse{Data: *meme})
}

// ListMemes handles retrieving the shared feed, newest first.
// @Summary Get meme feed
// @Description Retrieve all published memes, newest first
// @Tags memes
// @Produce json
// @Success 200 {object} models.MemesResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/memes [get]
func (h *Handler) ListMemes(c *gin.Context) {
	ctx := c.Request.Context()

	// Try cache first
	memes, found, err := h.cache.GetFeed(ctx)
	if err == nil && found {
		h.logger.Debug("Returning cached feed")
		c.JSON(http.StatusOK, models.MemesResponse{Data: memes})
		return
	}

	// Cache miss, get from database
	memes, err = h.repo.ListMemes(ctx)
	if err != nil {
		h.logger.Error("Failed to list memes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to retrieve memes",
		})
		return
	}

	// Update cache
	_ = h.cache.SetFeed(ctx, memes)

	c.JSON(http.StatusOK, models.MemesResponse{Data: memes})
}

// GetMeme handles retrieving a single meme by ID.
// @Summary Get meme by ID
// @Description Retrieve a specific meme by its ID
// @Tags memes
// @Produce json
// @Param id path string true "Meme ID"
// @Success 200 {object} models.MemeResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/memes/{id} [get]
func (h *Handler) GetMeme(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	// Try cache first
	meme, err := h.cache.GetMeme(ctx, id)
	if err == nil && meme != nil {
		h.logger.Debug("Returning cached meme", zap.String("id", id))
		c.JSON(http.StatusOK, models.MemeResponse{Data: *meme})
		return
	}

	// Cache miss, get from database
	meme, err = h.repo.GetMeme(ctx, id)
	if err != nil {
		h.logger.Error("Failed to get meme", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to retrieve meme",
		})
		return
	}

	if meme == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "meme not found",
		})
		return
	}

	// Update cache
	_ = h.cache.SetMeme(ctx, meme)

	c.JSON(http.StatusOK, models.MemeResponse{Data: *meme})
}

// DeleteMeme handles deleting a meme.
// @Summary Delete meme
// @Description Delete a meme by ID
// @Tags memes
// @Produce json
// @Param id path string true "Meme ID"
// @Success 204 "No Content"
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/memes/{id} [delete]
func (h *Handler) DeleteMeme(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	err := h.repo.DeleteMeme(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrMemeNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "meme not found",
			})
			return
		}

		h.logger.Error("Failed to delete meme", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to delete meme",
		})
		return
	}

	// Remove from cache
	_ = h.cache.DeleteMeme(ctx, id)

	c.Status(http.StatusNoContent)
}

// Vote handles a one-per-user vote on a meme.
// @Summary Vote on meme
// @Description Record one vote per user per meme
// @Tags memes
// @Accept json
// @Produce json
// @Param id path string true "Meme ID"
// @Param vote body models.VoteRequest true "Voter identity"
// @Success 200 {object} models.VoteResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/memes/{id}/vote [post]
func (h *Handler) Vote(c *gin.Context) {
	id := c.Param("id")

	var req models.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid vote request", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	votes, err := h.repo.Vote(ctx, id, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyVoted):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "already_voted",
				Message: "you have already voted on this meme",
			})
		case errors.Is(err, database.ErrMemeNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "meme not found",
			})
		default:
			h.logger.Error("Failed to record vote", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "internal_error",
				Message: "failed to record vote",
			})
		}
		return
	}

	// Vote counts changed, drop the cached copies
	_ = h.cache.DeleteMeme(ctx, id)

	c.JSON(http.StatusOK, models.VoteResponse{MemeID: id, Votes: votes})
}

// Render composites a base image with text overlays and returns the result
// as a downloadable PNG.
// @Summary Render composite
// @Description Render the base image with overlays and export as meme.png
// @Tags memes
// @Accept json
// @Produce png
// @Param render body models.RenderRequest true "Image source and overlays"
// @Success 200 {file} binary
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/v1/memes/render [post]
func (h *Handler) Render(c *gin.Context) {
	var req models.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid render request", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	img, err := h.loader.Load(ctx, req.ImageData)
	if err != nil {
		h.logger.Warn("Failed to load base image", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "image_load_failed",
			Message: err.Error(),
		})
		return
	}

	dc := h.renderer.Composite(img, req.TextOverlays)
	data, err := canvas.EncodePNG(dc.Image())
	if err != nil {
		h.logger.Error("Failed to encode composite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to encode composite",
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="meme.png"`)
	c.Data(http.StatusOK, "image/png", data)
}

// ListTemplates handles retrieving the cached template gallery.
// @Summary Get templates
// @Description Retrieve all fetched templates, newest first
// @Tags templates
// @Produce json
// @Success 200 {object} models.TemplatesResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/templates [get]
func (h *Handler) ListTemplates(c *gin.Context) {
	ctx := c.Request.Context()

	// Try cache first
	records, found, err := h.cache.GetTemplates(ctx)
	if err == nil && found {
		h.logger.Debug("Returning cached templates")
		c.JSON(http.StatusOK, models.TemplatesResponse{Data: records})
		return
	}

	// Cache miss, get from database
	records, err = h.repo.ListTemplates(ctx)
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to retrieve templates",
		})
		return
	}

	// Update cache
	_ = h.cache.SetTemplates(ctx, records)

	c.JSON(http.StatusOK, models.TemplatesResponse{Data: records})
}

// FetchTemplates runs the fetch/dedup engine against an external source and
// saves the accepted templates.
// @Summary Fetch new templates
// @Description Fetch trending templates from an external source, dedup and save
// @Tags templates
// @Produce json
// @Param source query string true "Template source (imgflip or reddit)"
// @Success 200 {object} models.FetchSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/v1/templates/fetch [post]
func (h *Handler) FetchTemplates(c *gin.Context) {
	sourceName := c.Query("source")
	source, ok := h.sources[sourceName]
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "unknown template source: " + sourceName,
		})
		return
	}

	ctx := c.Request.Context()
	existing, err := h.repo.TemplateURLs(ctx)
	if err != nil {
		h.logger.Error("Failed to load known template URLs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to load known templates",
		})
		return
	}

	records, err := h.fetcher.FetchNew(ctx, source, existing,
		h.cfg.TemplateFetchTarget, h.cfg.TemplateFetchAttempts)
	if err != nil {
		if errors.Is(err, templates.ErrNoNewTemplates) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "no_new_templates",
				Message: "all fetched templates were duplicates",
			})
			return
		}
		h.logger.Error("Template fetch failed",
			zap.String("source", sourceName),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "failed to fetch templates from " + sourceName,
		})
		return
	}

	result, err := h.repo.SaveTemplates(ctx, records)
	if err != nil {
		h.logger.Error("Failed to save templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "failed to save templates",
		})
		return
	}

	// Gallery changed, drop the cached copy
	_ = h.cache.InvalidateTemplates(ctx)

	c.JSON(http.StatusOK, models.FetchSummary{
		Source:     sourceName,
		Fetched:    len(records),
		Saved:      result.Saved,
		Duplicates: result.Duplicates,
		Failed:     result.Failed,
	})
}

// GenerateCaptions produces AI caption suggestions for a prompt.
// @Summary Generate captions
// @Description Generate meme caption suggestions for a user prompt
// @Tags captions
// @Accept json
// @Produce json
// @Param prompt body models.CaptionRequest true "Caption prompt"
// @Success 200 {object} models.CaptionsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/captions [post]
func (h *Handler) GenerateCaptions(c *gin.Context) {
	var req models.CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid caption request", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	captions, err := h.captions.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, caption.ErrDisabled):
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:   "captions_disabled",
				Message: "caption generation is not configured",
			})
		case errors.Is(err, caption.ErrEmptyPrompt):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "caption prompt is empty",
			})
		default:
			h.logger.Error("Caption generation failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "caption_failed",
				Message: "failed to generate captions",
			})
		}
		return
	}

	c.JSON(http.StatusOK, models.CaptionsResponse{Data: captions})
}
