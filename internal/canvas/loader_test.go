package canvas

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoader_DataURL(t *testing.T) {
	loader := NewLoader()

	img, err := loader.Load(context.Background(), pngDataURL(t, 50, 40))
	assert.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
}

func TestLoader_MalformedDataURL(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Load(context.Background(), "data:image/png")
	assert.Error(t, err)
}

func TestLoader_HTTPSource(t *testing.T) {
	var buf bytes.Buffer
	err := png.Encode(&buf, solidImage(30, 20, color.RGBA{A: 255}))
	assert.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	loader := NewLoader()
	img, err := loader.Load(context.Background(), server.URL+"/template.png")
	assert.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
}

func TestLoader_HTTPNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	loader := NewLoader()
	_, err := loader.Load(context.Background(), server.URL+"/missing.png")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
