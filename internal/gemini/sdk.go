package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"mockup-studio/internal/mockup"
)

type SDKOptions struct {
	APIKey     string
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// SDKClient serves the same calls as Client through the genai SDK.
type SDKClient struct {
	client     *genai.Client
	imageModel string
	textModel  string
	logger     *slog.Logger
}

func NewSDK(ctx context.Context, opts SDKOptions) (*SDKClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &SDKClient{
		client:     client,
		imageModel: modelOr(opts.ImageModel, DefaultImageModel),
		textModel:  modelOr(opts.TextModel, DefaultTextModel),
		logger:     logger,
	}, nil
}

func (c *SDKClient) GenerateImage(ctx context.Context, prompt string, images []mockup.ImagePart) (mockup.ImagePart, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		raw, err := img.Bytes()
		if err != nil {
			return mockup.ImagePart{}, err
		}
		parts = append(parts, genai.NewPartFromBytes(raw, img.MimeType))
	}

	result, err := c.client.Models.GenerateContent(ctx, c.imageModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return mockup.ImagePart{}, fmt.Errorf("generate content: %w", err)
	}

	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				c.logger.Debug("sdk image received", "model", c.imageModel, "bytes", len(p.InlineData.Data))
				return mockup.NewImagePart(p.InlineData.Data, p.InlineData.MIMEType), nil
			}
		}
		break
	}
	return mockup.ImagePart{}, mockup.ErrNoImageData
}

func (c *SDKClient) DescribeImage(ctx context.Context, image mockup.ImagePart, instruction string) (string, error) {
	raw, err := image.Bytes()
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(raw, image.MimeType),
		genai.NewPartFromText(instruction),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.textModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("empty text response")
	}
	return text, nil
}
