// Package cache provides Redis caching for the meme feed and the template
// gallery.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/config"
	"github.com/meme-forge/backend/internal/models"
)

const (
	// Cache key prefixes
	memeKeyPrefix = "meme:"
	feedKey       = "memes:feed"
	templatesKey  = "templates:all"

	// Default TTL for cached items
	defaultTTL = 5 * time.Minute
)

// Cache defines the interface for caching operations. Read errors are
// treated as cache misses so Redis outages degrade to database reads.
type Cache interface {
	// GetMeme retrieves a meme from cache by ID.
	GetMeme(ctx context.Context, id string) (*models.Meme, error)

	// GetFeed retrieves the cached meme feed.
	GetFeed(ctx context.Context) ([]models.Meme, bool, error)

	// SetMeme stores a meme in cache and invalidates the feed.
	SetMeme(ctx context.Context, meme *models.Meme) error

	// SetFeed stores the meme feed in cache.
	SetFeed(ctx context.Context, memes []models.Meme) error

	// DeleteMeme removes a meme from cache and invalidates the feed.
	DeleteMeme(ctx context.Context, id string) error

	// InvalidateFeed removes the cached feed.
	InvalidateFeed(ctx context.Context) error

	// GetTemplates retrieves the cached template gallery.
	GetTemplates(ctx context.Context) ([]models.TemplateRecord, bool, error)

	// SetTemplates stores the template gallery in cache.
	SetTemplates(ctx context.Context, templates []models.TemplateRecord) error

	// InvalidateTemplates removes the cached gallery.
	InvalidateTemplates(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(cfg *config.Config, logger *zap.Logger) (Cache, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis cache")

	return &RedisCache{
		client: client,
		logger: logger,
		ttl:    defaultTTL,
	}, nil
}

// GetMeme retrieves a meme from cache by ID.
func (c *RedisCache) GetMeme(ctx context.Context, id string) (*models.Meme, error) {
	key := memeKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get from cache", zap.String("key", key), zap.Error(err))
		return nil, nil // Treat errors as cache miss
	}

	var meme models.Meme
	if err := json.Unmarshal(data, &meme); err != nil {
		c.logger.Warn("Failed to unmarshal cached meme", zap.Error(err))
		return nil, nil
	}

	c.logger.Debug("Cache hit", zap.String("key", key))
	return &meme, nil
}

// GetFeed retrieves the cached meme feed.
func (c *RedisCache) GetFeed(ctx context.Context) ([]models.Meme, bool, error) {
	data, err := c.client.Get(ctx, feedKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get feed from cache", zap.Error(err))
		return nil, false, nil
	}

	var memes []models.Meme
	if err := json.Unmarshal(data, &memes); err != nil {
		c.logger.Warn("Failed to unmarshal cached feed", zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Cache hit for meme feed")
	return memes, true, nil
}

// SetMeme stores a meme in cache.
func (c *RedisCache) SetMeme(ctx context.Context, meme *models.Meme) error {
	key := memeKeyPrefix + meme.ID

	data, err := json.Marshal(meme)
	if err != nil {
		c.logger.Warn("Failed to marshal meme for cache", zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}

	// Invalidate the feed cache since data changed
	_ = c.InvalidateFeed(ctx)

	c.logger.Debug("Cached meme", zap.String("key", key))
	return nil
}

// SetFeed stores the meme feed in cache.
func (c *RedisCache) SetFeed(ctx context.Context, memes []models.Meme) error {
	data, err := json.Marshal(memes)
	if err != nil {
		c.logger.Warn("Failed to marshal feed for cache", zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, feedKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set feed cache", zap.Error(err))
		return err
	}

	c.logger.Debug("Cached meme feed", zap.Int("count", len(memes)))
	return nil
}

// DeleteMeme removes a meme from cache.
func (c *RedisCache) DeleteMeme(ctx context.Context, id string) error {
	key := memeKeyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Failed to delete from cache", zap.String("key", key), zap.Error(err))
		return err
	}

	// Invalidate the feed cache since data changed
	_ = c.InvalidateFeed(ctx)

	c.logger.Debug("Deleted from cache", zap.String("key", key))
	return nil
}

// InvalidateFeed removes the cached feed.
func (c *RedisCache) InvalidateFeed(ctx context.Context) error {
	if err := c.client.Del(ctx, feedKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate feed cache", zap.Error(err))
		return err
	}
	return nil
}

// GetTemplates retrieves the cached template gallery.
func (c *RedisCache) GetTemplates(ctx context.Context) ([]models.TemplateRecord, bool, error) {
	data, err := c.client.Get(ctx, templatesKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		c.logger.Warn("Failed to get templates from cache", zap.Error(err))
		return nil, false, nil
	}

	var templates []models.TemplateRecord
	if err := json.Unmarshal(data, &templates); err != nil {
		c.logger.Warn("Failed to unmarshal cached templates", zap.Error(err))
		return nil, false, nil
	}

	c.logger.Debug("Cache hit for template gallery")
	return templates, true, nil
}

// SetTemplates stores the template gallery in cache.
func (c *RedisCache) SetTemplates(ctx context.Context, templates []models.TemplateRecord) error {
	data, err := json.Marshal(templates)
	if err != nil {
		c.logger.Warn("Failed to marshal templates for cache", zap.Error(err))
		return err
	}

	if err := c.client.Set(ctx, templatesKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to set templates cache", zap.Error(err))
		return err
	}

	c.logger.Debug("Cached template gallery", zap.Int("count", len(templates)))
	return nil
}

// InvalidateTemplates removes the cached gallery.
func (c *RedisCache) InvalidateTemplates(ctx context.Context) error {
	if err := c.client.Del(ctx, templatesKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate templates cache", zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.client.Close()
}
