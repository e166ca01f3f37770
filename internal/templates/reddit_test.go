package templates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestRedditSource(serverURL string) *RedditSource {
	s := NewRedditSource(zap.NewNop())
	s.baseURL = serverURL
	s.client.limiter = rate.NewLimiter(rate.Inf, 0)
	s.client.relays = nil
	return s
}

func redditListingJSON(posts []redditPost) redditListing {
	var listing redditListing
	for _, post := range posts {
		listing.Data.Children = append(listing.Data.Children, struct {
			Data redditPost `json:"data"`
		}{Data: post})
	}
	return listing
}

// redditServer serves hot and top listings read at request time, plus the
// images the posts link to.
func redditServer(hot, top *[]redditPost) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/hot.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(redditListingJSON(*hot))
	})
	mux.HandleFunc("/top.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(redditListingJSON(*top))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})
	return httptest.NewServer(mux)
}

func TestRedditFetch_MergesAndRanksByScore(t *testing.T) {
	var hot, top []redditPost
	server := redditServer(&hot, &top)
	defer server.Close()

	hot = []redditPost{
		{Title: "Mid meme", URL: server.URL + "/img/a.png", Score: 50, Ups: 50, Author: "u1", Subreddit: "memes"},
		{Title: "Discussion thread", URL: "https://www.reddit.com/r/memes/comments/abc", Score: 999},
		{Title: "Best meme", URL: server.URL + "/img/b.png", Score: 90, Ups: 90, Author: "u2", Subreddit: "memes"},
	}
	top = []redditPost{
		// Same image as the hot listing, must not appear twice.
		{Title: "Mid meme", URL: server.URL + "/img/a.png", Score: 50},
		{Title: "Daily winner", URL: server.URL + "/img/c.png", Score: 70, Ups: 70, Author: "u3", Subreddit: "memes"},
	}

	source := newTestRedditSource(server.URL)
	records, err := source.Fetch(context.Background())
	assert.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, "Best meme", records[0].Name)
	assert.Equal(t, "Daily winner", records[1].Name)
	assert.Equal(t, "Mid meme", records[2].Name)
	for _, record := range records {
		assert.Equal(t, "reddit", record.Source)
		assert.True(t, strings.HasPrefix(record.ImageData, "data:image/png;base64,"))
		assert.Contains(t, record.Metadata, "upvotes")
	}
}

func TestRedditFetch_TruncatesTitleForName(t *testing.T) {
	longTitle := strings.Repeat("x", 80)

	var hot, top []redditPost
	server := redditServer(&hot, &top)
	defer server.Close()

	hot = []redditPost{
		{Title: longTitle, URL: server.URL + "/img/a.png", Score: 10},
	}

	source := newTestRedditSource(server.URL)
	records, err := source.Fetch(context.Background())
	assert.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Len(t, records[0].Name, 50)
	assert.Equal(t, longTitle, records[0].Description[:80])
}

func TestRedditFetch_OneListingFailureTolerated(t *testing.T) {
	var hot []redditPost
	mux := http.NewServeMux()
	mux.HandleFunc("/hot.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(redditListingJSON(hot))
	})
	mux.HandleFunc("/top.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	hot = []redditPost{
		{Title: "Survivor", URL: server.URL + "/img/a.png", Score: 10},
	}

	source := newTestRedditSource(server.URL)
	records, err := source.Fetch(context.Background())
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRedditFetch_BothListingsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	source := newTestRedditSource(server.URL)
	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
}
