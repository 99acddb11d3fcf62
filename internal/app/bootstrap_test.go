package app

import (
	"context"
	"testing"

	"github.com/akolanti/docqa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_LocalBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Backends.LLM = config.LLMOpenAI
	cfg.Backends.OpenAIAPIKey = "sk-test"

	c, err := Build(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer c.Pool.Stop()
	assert.NotNil(t, c.Service)
}

func TestBuild_MissingKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Backends.Embedder = config.EmbedderOpenAI

	_, err := Build(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "embedder openai")
}

func TestValueOr(t *testing.T) {
	assert.Equal(t, "a", valueOr("a", "b"))
	assert.Equal(t, "b", valueOr("", "b"))
}
