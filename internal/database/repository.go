// Package database provides PostgreSQL persistence for memes, votes and
// fetched templates.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/config"
	"github.com/meme-forge/backend/internal/models"
)

// Postgres error codes for unique and foreign key constraint hits.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// saveRetryDelay is applied before the single retry of a timeout-classified
// template save.
const saveRetryDelay = 2 * time.Second

// ErrAlreadyVoted reports that this user already voted on this meme. It is
// an expected, idempotent-outcome condition, not a failure.
var ErrAlreadyVoted = errors.New("already voted")

// ErrMemeNotFound reports an operation against a meme that does not exist.
var ErrMemeNotFound = errors.New("meme not found")

// SaveResult summarizes a partial-batch template save.
type SaveResult struct {
	Saved      int
	Duplicates int
	Failed     int
}

// Repository defines the interface for meme data operations.
type Repository interface {
	// CreateMeme publishes a composite meme to the shared feed.
	CreateMeme(ctx context.Context, req *models.CreateMemeRequest) (*models.Meme, error)

	// GetMeme retrieves a meme by its ID.
	GetMeme(ctx context.Context, id string) (*models.Meme, error)

	// ListMemes retrieves the feed, newest first.
	ListMemes(ctx context.Context) ([]models.Meme, error)

	// DeleteMeme removes a meme by its ID.
	DeleteMeme(ctx context.Context, id string) error

	// Vote records a one-per-user vote and increments the meme's counter.
	// The second vote by the same user returns ErrAlreadyVoted.
	Vote(ctx context.Context, memeID, userID string) (int, error)

	// SaveTemplates stores fetched templates, skipping duplicates and
	// counting individual failures instead of aborting the batch.
	SaveTemplates(ctx context.Context, records []models.TemplateRecord) (*SaveResult, error)

	// ListTemplates retrieves all cached templates, newest first.
	ListTemplates(ctx context.Context) ([]models.TemplateRecord, error)

	// TemplateURLs returns the set of known template source URLs used as
	// deduplication keys.
	TemplateURLs(ctx context.Context) (map[string]struct{}, error)

	// Close closes the database connection.
	Close()
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(cfg *config.Config, logger *zap.Logger) (Repository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{
		pool:   pool,
		logger: logger,
	}

	if err := repo.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to PostgreSQL database")
	return repo, nil
}

// migrate creates the necessary database tables if they don't exist. The
// votes primary key enforces the one-vote-per-user invariant at the store
// level; the partial index on original_url enforces template uniqueness
// while exempting records without a source URL.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS memes (
			id UUID PRIMARY KEY,
			image_data TEXT NOT NULL,
			text_overlays TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			votes INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_memes_created_at ON memes(created_at);

		CREATE TABLE IF NOT EXISTS votes (
			meme_id UUID NOT NULL REFERENCES memes(id) ON DELETE CASCADE,
			user_id VARCHAR(256) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (meme_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS fetched_templates (
			id UUID PRIMARY KEY,
			name VARCHAR(256) NOT NULL,
			description TEXT DEFAULT '',
			source VARCHAR(64) NOT NULL,
			original_url TEXT NOT NULL DEFAULT '',
			image_data TEXT NOT NULL,
			file_name VARCHAR(256) DEFAULT '',
			file_path VARCHAR(256) DEFAULT '',
			metadata TEXT DEFAULT '{}',
			fetched_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			votes INTEGER NOT NULL DEFAULT 0
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_original_url
			ON fetched_templates(original_url) WHERE original_url <> '';

		CREATE INDEX IF NOT EXISTS idx_templates_fetched_at ON fetched_templates(fetched_at);
	`

	_, err := r.pool.Exec(ctx, query)
	return err
}

// CreateMeme publishes a composite meme to the shared feed.
func (r *PostgresRepository) CreateMeme(ctx context.Context, req *models.CreateMemeRequest) (*models.Meme, error) {
	overlays := req.TextOverlays
	if overlays == nil {
		overlays = []models.TextOverlay{}
	}

	serialized, err := models.MarshalOverlays(overlays)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize overlays: %w", err)
	}

	meme := &models.Meme{
		ID:           uuid.New().String(),
		ImageData:    req.ImageData,
		TextOverlays: overlays,
		CreatedAt:    time.Now().UTC(),
		Votes:        0,
	}

	query := `
		INSERT INTO memes (id, image_data, text_overlays, created_at, votes)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.pool.Exec(ctx, query,
		meme.ID,
		meme.ImageData,
		serialized,
		meme.CreatedAt,
		meme.Votes,
	)

	if err != nil {
		r.logger.Error("Failed to create meme", zap.Error(err))
		return nil, fmt.Errorf("failed to create meme: %w", err)
	}

	r.logger.Info("Created meme", zap.String("id", meme.ID))
	return meme, nil
}

// GetMeme retrieves a meme by its ID.
func (r *PostgresRepository) GetMeme(ctx context.Context, id string) (*models.Meme, error) {
	query := `
		SELECT id, image_data, text_overlays, created_at, votes
		FROM memes
		WHERE id = $1
	`

	meme, err := scanMeme(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get meme", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get meme: %w", err)
	}

	return meme, nil
}

// ListMemes retrieves the feed, newest first.
func (r *PostgresRepository) ListMemes(ctx context.Context) ([]models.Meme, error) {
	query := `
		SELECT id, image_data, text_overlays, created_at, votes
		FROM memes
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list memes", zap.Error(err))
		return nil, fmt.Errorf("failed to list memes: %w", err)
	}
	defer rows.Close()

	memes := []models.Meme{}
	for rows.Next() {
		meme, err := scanMeme(rows)
		if err != nil {
			r.logger.Error("Failed to scan meme row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan meme: %w", err)
		}
		memes = append(memes, *meme)
	}

	return memes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeme(row rowScanner) (*models.Meme, error) {
	var meme models.Meme
	var serialized string

	err := row.Scan(
		&meme.ID,
		&meme.ImageData,
		&serialized,
		&meme.CreatedAt,
		&meme.Votes,
	)
	if err != nil {
		return nil, err
	}

	meme.TextOverlays, err = models.UnmarshalOverlays(serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize overlays: %w", err)
	}
	return &meme, nil
}

// DeleteMeme removes a meme by its ID.
func (r *PostgresRepository) DeleteMeme(ctx context.Context, id string) error {
	query := `DELETE FROM memes WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete meme", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete meme: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMemeNotFound
	}

	r.logger.Info("Deleted meme", zap.String("id", id))
	return nil
}

// Vote records a one-per-user vote marker and increments the meme's vote
// counter in the same transaction. The votes primary key makes the
// uniqueness check atomic; a conflicting insert surfaces as
// ErrAlreadyVoted.
func (r *PostgresRepository) Vote(ctx context.Context, memeID, userID string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	marker, err := tx.Exec(ctx, `
		INSERT INTO votes (meme_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (meme_id, user_id) DO NOTHING
	`, memeID, userID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return 0, ErrMemeNotFound
		}
		r.logger.Error("Failed to record vote", zap.String("meme_id", memeID), zap.Error(err))
		return 0, fmt.Errorf("failed to record vote: %w", err)
	}

	if marker.RowsAffected() == 0 {
		return 0, ErrAlreadyVoted
	}

	var votes int
	err = tx.QueryRow(ctx, `
		UPDATE memes SET votes = votes + 1 WHERE id = $1 RETURNING votes
	`, memeID).Scan(&votes)
	if err == pgx.ErrNoRows {
		return 0, ErrMemeNotFound
	}
	if err != nil {
		r.logger.Error("Failed to increment votes", zap.String("meme_id", memeID), zap.Error(err))
		return 0, fmt.Errorf("failed to increment votes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit vote: %w", err)
	}

	r.logger.Info("Recorded vote",
		zap.String("meme_id", memeID),
		zap.Int("votes", votes),
	)
	return votes, nil
}

// SaveTemplates stores fetched templates one by one. A duplicate
// original_url is counted, not treated as a failure; a timeout-classified
// error is retried once after a short delay; any other failure is counted
// and the batch continues.
func (r *PostgresRepository) SaveTemplates(ctx context.Context, records []models.TemplateRecord) (*SaveResult, error) {
	result := &SaveResult{}

	for _, record := range records {
		err := r.saveTemplate(ctx, record)
		if err != nil && isTimeout(err) {
			r.logger.Warn("Template save timed out, retrying",
				zap.String("name", record.Name),
			)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(saveRetryDelay):
			}
			err = r.saveTemplate(ctx, record)
		}

		switch {
		case err == nil:
			result.Saved++
		case isDuplicate(err):
			result.Duplicates++
			r.logger.Debug("Skipping duplicate template",
				zap.String("name", record.Name),
				zap.String("url", record.OriginalURL),
			)
		default:
			result.Failed++
			r.logger.Error("Failed to save template",
				zap.String("name", record.Name),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("Saved template batch",
		zap.Int("saved", result.Saved),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *PostgresRepository) saveTemplate(ctx context.Context, record models.TemplateRecord) error {
	fetchedAt := record.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO fetched_templates
			(id, name, description, source, original_url, image_data,
			 file_name, file_path, metadata, fetched_at, votes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
	`,
		uuid.New().String(),
		record.Name,
		record.Description,
		record.Source,
		record.OriginalURL,
		record.ImageData,
		record.FileName,
		record.FilePath,
		record.Metadata,
		fetchedAt,
	)
	return err
}

// ListTemplates retrieves all cached templates, newest first.
func (r *PostgresRepository) ListTemplates(ctx context.Context) ([]models.TemplateRecord, error) {
	query := `
		SELECT id, name, description, source, original_url, image_data,
		       file_name, file_path, metadata, fetched_at, votes
		FROM fetched_templates
		ORDER BY fetched_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []models.TemplateRecord{}
	for rows.Next() {
		var t models.TemplateRecord
		err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Description,
			&t.Source,
			&t.OriginalURL,
			&t.ImageData,
			&t.FileName,
			&t.FilePath,
			&t.Metadata,
			&t.FetchedAt,
			&t.Votes,
		)
		if err != nil {
			r.logger.Error("Failed to scan template row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	return templates, nil
}

// TemplateURLs returns the set of known template source URLs.
func (r *PostgresRepository) TemplateURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT original_url FROM fetched_templates WHERE original_url <> ''
	`)
	if err != nil {
		r.logger.Error("Failed to query template URLs", zap.Error(err))
		return nil, fmt.Errorf("failed to query template URLs: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan template URL: %w", err)
		}
		urls[url] = struct{}{}
	}

	return urls, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
	r.logger.Info("Closed database connection")
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
