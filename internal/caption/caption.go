// Package caption generates meme captions through the Groq chat completion
// API. The feature is optional: without an API key the client reports
// itself disabled and the rest of the system is unaffected.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIURL = "https://api.groq.com/openai/v1/chat/completions"
	model         = "llama-3.1-8b-instant"
	maxCaptions   = 10
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("caption generation is disabled: no API key configured")

// ErrEmptyPrompt is returned for a blank caption prompt.
var ErrEmptyPrompt = errors.New("caption prompt is empty")

var numberedLine = regexp.MustCompile(`^\d+[.)]`)

// Client calls the caption generation API.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a caption client. An empty apiKey disables the feature
// without failing.
func NewClient(apiKey string, logger *zap.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: defaultAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces up to ten short captions for the given user input.
func (c *Client) Generate(ctx context.Context, userInput string) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(userInput) == "" {
		return nil, ErrEmptyPrompt
	}

	prompt := fmt.Sprintf(`Generate 10 funny, creative meme captions based on this user input: %q.
Make them humorous, relatable, and perfect for memes. Keep each caption concise (under 50 characters when possible).
Return only the captions, one per line, without numbering or bullet points.`, userInput)

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a creative meme caption generator. Generate funny, relatable meme captions."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.8,
		MaxTokens:   400,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode caption request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create caption request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read caption response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode caption response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("caption API error: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("caption API error: status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("caption API returned no choices")
	}

	captions := parseCaptions(parsed.Choices[0].Message.Content)
	c.logger.Info("Generated captions", zap.Int("count", len(captions)))
	return captions, nil
}

// parseCaptions splits the model output into individual captions, dropping
// blank and numbered lines.
func parseCaptions(content string) []string {
	var captions []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || numberedLine.MatchString(line) {
			continue
		}
		captions = append(captions, line)
		if len(captions) == maxCaptions {
			break
		}
	}
	if len(captions) == 0 {
		captions = []string{"No captions generated"}
	}
	return captions
}
