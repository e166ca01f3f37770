package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

const (
	// maxImageBytes bounds remote image downloads.
	maxImageBytes = 10 * 1024 * 1024

	loadTimeout = 30 * time.Second
)

// Loader resolves an image source into a decoded image. Sources are either
// base64 data URLs or http(s) URLs; decoding is delegated to the registered
// stdlib and x/image codecs.
type Loader struct {
	client *http.Client
}

// NewLoader creates a loader with a bounded-timeout HTTP client.
func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: loadTimeout,
		},
	}
}

// Load decodes the image referenced by src.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// decodeDataURL decodes a base64 data URL of the form
// "data:image/png;base64,...".
func decodeDataURL(src string) (image.Image, error) {
	_, encoded, found := strings.Cut(src, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URL")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
