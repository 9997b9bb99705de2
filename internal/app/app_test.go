package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockup-studio/internal/config"
	"mockup-studio/internal/gemini"
	"mockup-studio/internal/mockup"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Config{LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "slot", "model1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "model1", entry["slot"])
}

func TestNewGeneratorRest(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.Config{GeminiTransport: "rest", GeminiAPIKey: "k"}, http.DefaultClient, nil)
	require.NoError(t, err)
	assert.IsType(t, &gemini.Client{}, gen)
}

func TestNewGeneratorUnknown(t *testing.T) {
	_, err := NewGenerator(context.Background(), config.Config{GeminiTransport: "grpc"}, http.DefaultClient, nil)
	assert.Error(t, err)
}

func TestInitSentryWithoutDSN(t *testing.T) {
	flush, err := InitSentry(config.Config{}, "test")
	require.NoError(t, err)
	flush()
}

func TestStudioFactoryAppliesConfig(t *testing.T) {
	cfg := config.Config{RetryMaxAttempts: 1, StatusRotate: time.Second, WatermarkText: "Toko Kita", SessionTTL: time.Minute}
	gen, err := NewGenerator(context.Background(), config.Config{GeminiTransport: "rest", GeminiAPIKey: "k"}, http.DefaultClient, nil)
	require.NoError(t, err)

	store := NewSessionStore(cfg, gen, nil)
	sess := store.Create()
	_, err = sess.Studio.UpdateOptions(func(o *mockup.Options) { o.Watermark = true })
	require.NoError(t, err)

	flatlay, _ := sess.Studio.Prompts()
	assert.Contains(t, flatlay, "Toko Kita")
}
