package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"mockup-studio/internal/mockup"
)

const (
	DefaultImageModel = "gemini-2.5-flash-image-preview"
	DefaultTextModel  = "gemini-2.5-flash"

	portraitAspectRatio = "9:16"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the generateContent REST endpoint directly.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	imageModel string
	textModel  string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		imageModel: modelOr(opts.ImageModel, DefaultImageModel),
		textModel:  modelOr(opts.TextModel, DefaultTextModel),
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// GenerateImage sends the prompt followed by the images and returns the first
// inline image of the response.
func (c *Client) GenerateImage(ctx context.Context, prompt string, images []mockup.ImagePart) (mockup.ImagePart, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return mockup.ImagePart{}, errors.New("prompt is empty")
	}

	parts := []part{{Text: prompt}}
	for _, img := range images {
		parts = append(parts, part{InlineData: &blob{Data: img.Data, MimeType: img.MimeType}})
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
			ImageConfig:        &imageConfig{AspectRatio: portraitAspectRatio},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, req)
	if err != nil && isUnknownFieldError(err, "imageConfig") {
		c.logger.Debug("imageConfig rejected, retrying without it", "model", c.imageModel)
		req.GenerationConfig.ImageConfig = nil
		resp, err = c.generateContent(ctx, c.imageModel, req)
	}
	if err != nil {
		return mockup.ImagePart{}, err
	}

	text, img, ok := firstImage(resp)
	if !ok {
		return mockup.ImagePart{}, noImageError(resp, text)
	}
	return img, nil
}

// noImageError keeps the model's text reply or its finish reason so refusals
// show up in the logs.
func noImageError(resp generateContentResponse, text string) error {
	if text = strings.TrimSpace(text); text != "" {
		return fmt.Errorf("%w: %s", mockup.ErrNoImageData, truncate(text, 200))
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return fmt.Errorf("%w: finish reason %s", mockup.ErrNoImageData, resp.Candidates[0].FinishReason)
	}
	return mockup.ErrNoImageData
}

// DescribeImage sends one image with an instruction and returns the text answer.
func (c *Client) DescribeImage(ctx context.Context, image mockup.ImagePart, instruction string) (string, error) {
	if image.IsZero() {
		return "", errors.New("image is empty")
	}

	req := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &blob{Data: image.Data, MimeType: image.MimeType}},
				{Text: instruction},
			},
		}},
	}

	resp, err := c.generateContent(ctx, c.textModel, req)
	if err != nil {
		return "", err
	}

	text, _, _ := firstImage(resp)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty text response")
	}
	return text, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	if c.httpClient == nil {
		return generateContentResponse{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return generateContentResponse{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return generateContentResponse{}, &APIError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       strings.TrimSpace(string(rawBody)),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return generateContentResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return generateContentResponse{}, fmt.Errorf("prompt blocked: %s", decoded.PromptFeedback.BlockReason)
	}

	c.logger.Debug("gemini response", "model", model, "candidates", len(decoded.Candidates))
	return decoded, nil
}

// firstImage collects the text of the first candidate and its first inline image.
func firstImage(resp generateContentResponse) (string, mockup.ImagePart, bool) {
	if len(resp.Candidates) == 0 {
		return "", mockup.ImagePart{}, false
	}

	var textBuilder strings.Builder
	var img mockup.ImagePart
	found := false

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if !found && p.InlineData != nil && p.InlineData.Data != "" {
			mimeType := p.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			img = mockup.ImagePart{Data: p.InlineData.Data, MimeType: mimeType}
			found = true
		}
	}

	return textBuilder.String(), img, found
}

func modelOr(model, fallback string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	return fallback
}

func truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "…"
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}
