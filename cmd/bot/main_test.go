package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("SENTRY_DSN", "")

	assert.EqualError(t, run(), "TELEGRAM_BOT_TOKEN is required")
}
