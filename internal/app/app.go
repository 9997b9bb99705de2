// Package app wires configuration into the pieces both front ends share.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"mockup-studio/internal/config"
	"mockup-studio/internal/gemini"
	"mockup-studio/internal/mockup"
	"mockup-studio/internal/session"
)

// Generator produces both images and video prompts.
type Generator interface {
	mockup.ImageGenerator
	mockup.TextGenerator
}

func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// InitSentry enables error reporting when a DSN is configured. The returned
// func flushes pending events.
func InitSentry(cfg config.Config, release string) (func(), error) {
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     release,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// NewGenerator builds the Gemini transport selected by GEMINI_TRANSPORT.
func NewGenerator(ctx context.Context, cfg config.Config, httpClient *http.Client, logger *slog.Logger) (Generator, error) {
	switch cfg.GeminiTransport {
	case "sdk":
		client, err := gemini.NewSDK(ctx, gemini.SDKOptions{
			APIKey:     cfg.GeminiAPIKey,
			ImageModel: cfg.GeminiImageModel,
			TextModel:  cfg.GeminiTextModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "rest", "":
		return gemini.New(gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			ImageModel: cfg.GeminiImageModel,
			TextModel:  cfg.GeminiTextModel,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown gemini transport %q", cfg.GeminiTransport)
	}
}

// StudioFactory returns the constructor the session store uses for new sessions.
func StudioFactory(cfg config.Config, gen Generator, logger *slog.Logger) func() *mockup.Studio {
	retry := mockup.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts

	return func() *mockup.Studio {
		return mockup.NewStudio(mockup.StudioOptions{
			Images:         gen,
			Text:           gen,
			Retry:          retry,
			StatusInterval: cfg.StatusRotate,
			Brand:          cfg.WatermarkText,
			Logger:         logger,
			OnSlotFailure:  reportSlotFailure,
		})
	}
}

func NewSessionStore(cfg config.Config, gen Generator, logger *slog.Logger) *session.Store {
	return session.NewStore(session.Options{
		TTL:       cfg.SessionTTL,
		NewStudio: StudioFactory(cfg, gen, logger),
		Logger:    logger,
	})
}

func reportSlotFailure(slot mockup.SlotID, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("slot", string(slot))
		sentry.CaptureException(err)
	})
}
