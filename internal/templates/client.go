// Package templates implements the external template fetch and
// deduplication engine.
package templates

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// corsRelays are tried in order when a source blocks direct access.
var corsRelays = []string{
	"https://api.allorigins.win/raw?url=",
	"https://corsproxy.io/?",
	"https://api.codetabs.com/v1/proxy?quest=",
}

const (
	fetchTimeout  = 30 * time.Second
	maxImageBytes = 10 * 1024 * 1024
	userAgent     = "Mozilla/5.0 (compatible; MemeForge/1.0)"
)

// relayClient fetches listings and images from external sources, falling
// back through the relay chain when a direct request is blocked. Requests
// are rate limited to avoid hammering the upstream sources.
type relayClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	relays     []string
	logger     *zap.Logger
}

func newRelayClient(logger *zap.Logger) *relayClient {
	return &relayClient{
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		relays:  corsRelays,
		logger:  logger,
	}
}

// get performs a single rate-limited GET and returns the body.
func (c *relayClient) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, target)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// getJSON fetches target and unmarshals the response into v, trying the
// direct URL first and then each relay. Relays sometimes return an HTML
// error page or wrap the payload in a "contents" field; both are handled.
func (c *relayClient) getJSON(ctx context.Context, target string, v any) error {
	var lastErr error

	for i, candidate := range append([]string{target}, c.relayURLs(target)...) {
		body, err := c.get(ctx, candidate)
		if err != nil {
			lastErr = err
			c.logger.Debug("Listing fetch failed",
				zap.String("url", candidate),
				zap.Error(err),
			)
			continue
		}

		if err := decodeListing(body, v); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", candidate, err)
			continue
		}

		if i > 0 {
			c.logger.Debug("Fetched listing via relay", zap.String("relay", candidate))
		}
		return nil
	}

	return fmt.Errorf("all sources exhausted for %s: %w", target, lastErr)
}

func (c *relayClient) relayURLs(target string) []string {
	urls := make([]string, 0, len(c.relays))
	for _, relay := range c.relays {
		urls = append(urls, relay+url.QueryEscape(target))
	}
	return urls
}

// decodeListing unmarshals a listing body, unwrapping the relay "contents"
// envelope when present. An HTML body means the relay was blocked.
func decodeListing(body []byte, v any) error {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<") {
		return fmt.Errorf("received HTML instead of JSON")
	}

	if err := json.Unmarshal(body, v); err == nil {
		return nil
	}

	var wrapper struct {
		Contents string `json:"contents"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Contents == "" {
		return fmt.Errorf("invalid JSON response")
	}
	return json.Unmarshal([]byte(wrapper.Contents), v)
}

// fetchImageDataURL downloads an image and encodes it as a base64 data URL
// for storage. The direct URL is tried before the first relay.
func (c *relayClient) fetchImageDataURL(ctx context.Context, imageURL string) (string, error) {
	data, err := c.get(ctx, imageURL)
	if err != nil && len(c.relays) > 0 {
		c.logger.Debug("Direct image fetch failed, trying relay",
			zap.String("url", imageURL),
			zap.Error(err),
		)
		data, err = c.get(ctx, c.relays[0]+url.QueryEscape(imageURL))
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch image %s: %w", imageURL, err)
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unexpected content type %s for %s", contentType, imageURL)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// fileNameFor builds a storable file name from the template name and the
// source URL's extension.
func fileNameFor(name, sourceURL string, index int) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "template"
	}

	ext := "jpg"
	if parts := strings.Split(sourceURL, "."); len(parts) > 1 {
		last := strings.SplitN(parts[len(parts)-1], "?", 2)[0]
		if last != "" && len(last) <= 5 {
			ext = last
		}
	}

	return fmt.Sprintf("%s-%d-%d.%s", slug, time.Now().UnixMilli(), index, ext)
}
