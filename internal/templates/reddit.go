package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

const (
	defaultRedditURL = "https://www.reddit.com/r/memes"

	// redditListingLimit is the number of posts requested per listing.
	redditListingLimit = 100

	// redditLimit caps one batch to the top posts by score.
	redditLimit = 20
)

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)(\?.*)?$`)

type redditPost struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Score      int     `json:"score"`
	Ups        int     `json:"ups"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	Permalink  string  `json:"permalink"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditSource fetches trending templates from the r/memes hot and top
// listings.
type RedditSource struct {
	client  *relayClient
	logger  *zap.Logger
	baseURL string
}

// NewRedditSource creates a Reddit template source.
func NewRedditSource(logger *zap.Logger) *RedditSource {
	return &RedditSource{
		client:  newRelayClient(logger),
		logger:  logger,
		baseURL: defaultRedditURL,
	}
}

// Name returns the origin tag stored on fetched records.
func (s *RedditSource) Name() string {
	return "reddit"
}

// Fetch merges the hot and top listings, keeps posts that link directly to
// an image, ranks them by score, and converts the top posts into storable
// records. A listing that fails entirely is tolerated as long as the other
// one succeeds.
func (s *RedditSource) Fetch(ctx context.Context) ([]models.TemplateRecord, error) {
	hot, hotErr := s.listing(ctx, fmt.Sprintf("%s/hot.json?limit=%d", s.baseURL, redditListingLimit))
	top, topErr := s.listing(ctx, fmt.Sprintf("%s/top.json?limit=%d&t=day", s.baseURL, redditListingLimit))

	if hotErr != nil && topErr != nil {
		return nil, fmt.Errorf("reddit listings: %w", topErr)
	}

	seen := make(map[string]struct{})
	var posts []redditPost
	for _, post := range append(hot, top...) {
		if !isImageURL(post.URL) {
			continue
		}
		if _, dup := seen[post.URL]; dup {
			continue
		}
		seen[post.URL] = struct{}{}
		posts = append(posts, post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Score > posts[j].Score
	})
	if len(posts) > redditLimit {
		posts = posts[:redditLimit]
	}

	records := make([]models.TemplateRecord, 0, len(posts))
	for i, post := range posts {
		imageData, err := s.client.fetchImageDataURL(ctx, post.URL)
		if err != nil {
			s.logger.Warn("Skipping template, image conversion failed",
				zap.String("title", post.Title),
				zap.String("url", post.URL),
				zap.Error(err),
			)
			continue
		}

		name := post.Title
		if len(name) > 50 {
			name = name[:50]
		}
		if name == "" {
			name = "Reddit Meme"
		}

		metadata, _ := json.Marshal(map[string]any{
			"upvotes":    post.Ups,
			"score":      post.Score,
			"author":     post.Author,
			"subreddit":  post.Subreddit,
			"created":    post.CreatedUTC,
			"popularity": post.Score,
			"permalink":  "https://reddit.com" + post.Permalink,
		})

		fileName := fileNameFor(name, post.URL, i)
		records = append(records, models.TemplateRecord{
			Name:        name,
			Description: fmt.Sprintf("%s - %d upvotes on r/%s", post.Title, post.Score, post.Subreddit),
			Source:      s.Name(),
			OriginalURL: post.URL,
			ImageData:   imageData,
			FileName:    fileName,
			FilePath:    "assets/" + fileName,
			Metadata:    string(metadata),
			FetchedAt:   time.Now().UTC(),
		})
	}

	s.logger.Info("Fetched Reddit batch", zap.Int("count", len(records)))
	return records, nil
}

func (s *RedditSource) listing(ctx context.Context, url string) ([]redditPost, error) {
	var listing redditListing
	if err := s.client.getJSON(ctx, url, &listing); err != nil {
		s.logger.Warn("Reddit listing failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func isImageURL(url string) bool {
	return imageURLPattern.MatchString(url) ||
		strings.Contains(url, "i.redd.it") ||
		strings.Contains(url, "imgur.com")
}
