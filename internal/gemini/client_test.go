package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockup-studio/internal/mockup"
)

type recordedRequest struct {
	path   string
	apiKey string
	body   generateContentRequest
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req generateContentRequest)) (*Client, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		seen = append(seen, recordedRequest{path: r.URL.Path, apiKey: r.Header.Get("x-goog-api-key"), body: req})
		mu.Unlock()
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	return c, &seen
}

func writeParts(w http.ResponseWriter, parts ...part) {
	_ = json.NewEncoder(w).Encode(generateContentResponse{
		Candidates: []candidate{{Content: content{Role: "model", Parts: parts}}},
	})
}

func TestGenerateImageSendsPromptThenImages(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		writeParts(w, part{Text: "here you go"}, part{InlineData: &blob{Data: "aW1n", MimeType: "image/png"}})
	})

	img, err := c.GenerateImage(context.Background(), "flat lay", []mockup.ImagePart{
		{Data: "YQ==", MimeType: "image/jpeg"},
		{Data: "Yg==", MimeType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, mockup.ImagePart{Data: "aW1n", MimeType: "image/png"}, img)

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, "/v1beta/models/"+DefaultImageModel+":generateContent", got.path)
	assert.Equal(t, "test-key", got.apiKey)
	parts := got.body.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "flat lay", parts[0].Text)
	assert.Equal(t, "YQ==", parts[1].InlineData.Data)
	assert.Equal(t, "image/png", parts[2].InlineData.MimeType)
	assert.Equal(t, []string{"IMAGE", "TEXT"}, got.body.GenerationConfig.ResponseModalities)
	assert.Equal(t, "9:16", got.body.GenerationConfig.ImageConfig.AspectRatio)
}

func TestGenerateImageWithoutImageData(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		writeParts(w, part{Text: "I cannot do that"})
	})

	_, err := c.GenerateImage(context.Background(), "model", nil)
	assert.ErrorIs(t, err, mockup.ErrNoImageData)
	assert.Contains(t, err.Error(), "I cannot do that")
}

func TestGenerateImageReportsFinishReason(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		_ = json.NewEncoder(w).Encode(generateContentResponse{
			Candidates: []candidate{{Content: content{Role: "model"}, FinishReason: "IMAGE_SAFETY"}},
		})
	})

	_, err := c.GenerateImage(context.Background(), "model", nil)
	assert.ErrorIs(t, err, mockup.ErrNoImageData)
	assert.EqualError(t, err, "no image data in response: finish reason IMAGE_SAFETY")
}

func TestGenerateImageDropsUnknownImageConfig(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		if req.GenerationConfig.ImageConfig != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid JSON payload received. Unknown name \"imageConfig\""}}`))
			return
		}
		writeParts(w, part{InlineData: &blob{Data: "aW1n", MimeType: "image/png"}})
	})

	_, err := c.GenerateImage(context.Background(), "model", nil)
	require.NoError(t, err)
	assert.Len(t, *seen, 2)
}

func TestGenerateImageAPIError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota`))
	})

	_, err := c.GenerateImage(context.Background(), "model", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota", apiErr.Body)
}

func TestDescribeImageSendsImageThenInstruction(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		writeParts(w, part{Text: "  A woman smiles slowly.  "})
	})

	text, err := c.DescribeImage(context.Background(), mockup.ImagePart{Data: "aW1n", MimeType: "image/png"}, mockup.VideoInstruction)
	require.NoError(t, err)
	assert.Equal(t, "A woman smiles slowly.", text)

	got := (*seen)[0]
	assert.True(t, strings.HasSuffix(got.path, DefaultTextModel+":generateContent"))
	parts := got.body.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.NotNil(t, parts[0].InlineData)
	assert.Equal(t, mockup.VideoInstruction, parts[1].Text)
	assert.Empty(t, got.body.GenerationConfig.ResponseModalities)
}

func TestDescribeImageEmptyText(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, req generateContentRequest) {
		writeParts(w)
	})

	_, err := c.DescribeImage(context.Background(), mockup.ImagePart{Data: "aW1n", MimeType: "image/png"}, "describe")
	assert.Error(t, err)
}
