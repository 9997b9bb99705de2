package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SENTRY_DSN", "")

	assert.EqualError(t, run(), "GEMINI_API_KEY is required")
}
