package templates

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDecodeListing_DirectJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	err := decodeListing([]byte(`{"name":"drake"}`), &out)
	assert.NoError(t, err)
	assert.Equal(t, "drake", out.Name)
}

func TestDecodeListing_ContentsEnvelope(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	// allorigins wraps the upstream body in a "contents" string field.
	err := decodeListing([]byte(`{"contents":"{\"name\":\"drake\"}"}`), &out)
	assert.NoError(t, err)
	assert.Equal(t, "drake", out.Name)
}

func TestDecodeListing_HTMLBody(t *testing.T) {
	var out struct{}

	err := decodeListing([]byte("<html><body>blocked</body></html>"), &out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")
}

func TestDecodeListing_Garbage(t *testing.T) {
	var out struct{}

	err := decodeListing([]byte("not json at all"), &out)
	assert.Error(t, err)
}

func TestRelayURLs(t *testing.T) {
	target := "https://api.imgflip.com/get_memes?x=1"

	urls := newRelayClient(zap.NewNop()).relayURLs(target)
	assert.Len(t, urls, len(corsRelays))
	for i, relay := range corsRelays {
		assert.Equal(t, relay+url.QueryEscape(target), urls[i])
	}
}

func TestFileNameFor(t *testing.T) {
	name := fileNameFor("Drake Hotline Bling!", "https://i.imgflip.com/30b1gx.png?width=600", 3)

	assert.True(t, strings.HasPrefix(name, "drake-hotline-bling-"))
	assert.True(t, strings.HasSuffix(name, "-3.png"))
}

func TestFileNameFor_FallbackSlugAndExt(t *testing.T) {
	name := fileNameFor("???", "https://example.com/no-extension", 0)

	assert.True(t, strings.HasPrefix(name, "template-"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
}

func TestIsImageURL(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://i.redd.it/abc123", true},
		{"https://imgur.com/gallery/xyz", true},
		{"https://example.com/meme.PNG", true},
		{"https://example.com/meme.jpg?width=500", true},
		{"https://example.com/meme.webp", true},
		{"https://www.reddit.com/r/memes/comments/abc", false},
		{"https://v.redd.it/somevideo", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, isImageURL(tt.url))
		})
	}
}
