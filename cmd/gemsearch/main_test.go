package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/gemsearch/config"
	"github.com/mohammad-safakhou/gemsearch/models"
	"github.com/mohammad-safakhou/gemsearch/provider"
	"github.com/mohammad-safakhou/gemsearch/provider/providertest"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, name := range []string{"GOOGLE_API_KEY", "PORT", "NODE_ENV", "GEMSEARCH_GEMINI_API_KEY", "GEMSEARCH_GENERAL_LOG_LEVEL"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func stubGateway(t *testing.T, gw provider.Gateway) {
	t.Helper()
	prev := newGateway
	newGateway = func(context.Context, config.GeminiConfig) (provider.Gateway, error) { return gw, nil }
	t.Cleanup(func() { newGateway = prev })
}

func run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskPrintsAnswerAndSources(t *testing.T) {
	isolate(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")
	gw := &providertest.Gateway{Reply: providertest.Static(models.Reply{
		Text: "Summary: Sunny & warm.",
		Grounding: &models.GroundingMetadata{
			Chunks: []models.GroundingChunk{{URI: "https://a.example", Title: "A"}},
		},
	})}
	stubGateway(t, gw)

	out, err := run("ask", "weather", "today", "--follow-up", "tomorrow?")
	require.NoError(t, err)

	assert.Contains(t, out, "Summary\nSunny & warm.")
	assert.Contains(t, out, "Sources:\n  1. A <https://a.example>")
	assert.Contains(t, out, "\n> tomorrow?\n")
	require.Len(t, gw.Conversations(), 1)
	assert.Equal(t, []string{"weather today", "tomorrow?"}, gw.Conversations()[0].Sent())
}

func TestAskRequiresAPIKey(t *testing.T) {
	isolate(t)
	stubGateway(t, &providertest.Gateway{})

	_, err := run("ask", "weather")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY environment variable must be set")
}

func TestAskRequiresQuery(t *testing.T) {
	isolate(t)
	t.Setenv("GOOGLE_API_KEY", "test-key")
	stubGateway(t, &providertest.Gateway{})

	_, err := run("ask")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	isolate(t)
	var buf bytes.Buffer

	require.NoError(t, setupLogging(config.GeneralConfig{LogLevel: "warn", LogFormat: "json", Environment: "production"}, &buf))
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"env":"production"`)

	assert.Error(t, setupLogging(config.GeneralConfig{LogLevel: "loud"}, &buf))
}
