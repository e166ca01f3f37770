package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

const (
	defaultImgflipURL = "https://api.imgflip.com/get_memes"

	// imgflipLimit caps one batch to the top templates by popularity.
	imgflipLimit = 10
)

type imgflipMeme struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BoxCount int    `json:"box_count"`
}

type imgflipListing struct {
	Success bool `json:"success"`
	Data    struct {
		Memes []imgflipMeme `json:"memes"`
	} `json:"data"`
}

// ImgflipSource fetches trending templates from the Imgflip meme listing.
type ImgflipSource struct {
	client  *relayClient
	logger  *zap.Logger
	baseURL string
}

// NewImgflipSource creates an Imgflip template source.
func NewImgflipSource(logger *zap.Logger) *ImgflipSource {
	return &ImgflipSource{
		client:  newRelayClient(logger),
		logger:  logger,
		baseURL: defaultImgflipURL,
	}
}

// Name returns the origin tag stored on fetched records.
func (s *ImgflipSource) Name() string {
	return "imgflip"
}

// Fetch retrieves the Imgflip listing, keeps the most popular templates by
// box count, and converts each image to a storable data URL. A template
// whose image cannot be converted is skipped, not fatal.
func (s *ImgflipSource) Fetch(ctx context.Context) ([]models.TemplateRecord, error) {
	var listing imgflipListing
	if err := s.client.getJSON(ctx, s.baseURL, &listing); err != nil {
		return nil, fmt.Errorf("imgflip listing: %w", err)
	}
	if !listing.Success {
		return nil, fmt.Errorf("imgflip listing: unexpected payload shape")
	}

	memes := listing.Data.Memes
	sort.SliceStable(memes, func(i, j int) bool {
		return memes[i].BoxCount > memes[j].BoxCount
	})
	if len(memes) > imgflipLimit {
		memes = memes[:imgflipLimit]
	}

	records := make([]models.TemplateRecord, 0, len(memes))
	for i, meme := range memes {
		imageData, err := s.client.fetchImageDataURL(ctx, meme.URL)
		if err != nil {
			s.logger.Warn("Skipping template, image conversion failed",
				zap.String("name", meme.Name),
				zap.String("url", meme.URL),
				zap.Error(err),
			)
			continue
		}

		metadata, _ := json.Marshal(map[string]any{
			"boxCount":   meme.BoxCount,
			"width":      meme.Width,
			"height":     meme.Height,
			"popularity": meme.BoxCount,
			"originalId": meme.ID,
		})

		fileName := fileNameFor(meme.Name, meme.URL, i)
		records = append(records, models.TemplateRecord{
			Name:        meme.Name,
			Description: fmt.Sprintf("Popular meme template %q with %d text boxes", meme.Name, meme.BoxCount),
			Source:      s.Name(),
			OriginalURL: meme.URL,
			ImageData:   imageData,
			FileName:    fileName,
			FilePath:    "assets/" + fileName,
			Metadata:    string(metadata),
			FetchedAt:   time.Now().UTC(),
		})
	}

	s.logger.Info("Fetched Imgflip batch", zap.Int("count", len(records)))
	return records, nil
}
