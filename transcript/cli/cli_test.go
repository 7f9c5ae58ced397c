package cli

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theimaginaryfoundation/page-scribe/transcript"
	"github.com/theimaginaryfoundation/page-scribe/transcript/config"
	"github.com/theimaginaryfoundation/page-scribe/transcript/delivery"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_BASE_URL", "OPENAI_BASE_URL", "OPENAI_API_KEY", "GEMINI_API_KEY", "TELEGRAM_BOT_TOKEN", "TOKEN", "TELEGRAM_CHAT_ID", "C_ID"} {
		t.Setenv(k, "")
	}
}

func parse(t *testing.T, args ...string) (Common, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := DefaultCommon(transcript.ParseJSON)
	c.EnvFile = ""
	c.Register(fs)
	require.NoError(t, fs.Parse(args))
	err := c.Resolve(fs)
	return c, err
}

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestResolve_FileFillsUnsetFlagsOnly(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, `
model:
  name: mistral
  temperature: 0.4
generation:
  max_tokens: 600
  delay: 250ms
  parse_mode: auto
delivery:
  archive_dir: /srv/out
logging:
  level: debug
`)

	c, err := parse(t, "-config", path, "-max-tokens", "900", "-log-level", "warn")
	require.NoError(t, err)
	assert.Equal(t, "mistral", c.Model)
	assert.InDelta(t, 0.4, c.Temperature, 1e-9)
	assert.Equal(t, 900, c.MaxTokens, "explicit flag wins")
	assert.Equal(t, 250*time.Millisecond, c.Delay)
	assert.Equal(t, "auto", c.ParseMode)
	assert.Equal(t, "/srv/out", c.ArchiveDir)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, config.DefaultBudget, c.Budget)
	assert.NoError(t, c.Validate())
}

func TestResolve_ExplicitZeroBudgetInFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, "generation:\n  budget: 0s\n")

	c, err := parse(t, "-config", path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), c.Budget)
}

func TestResolve_EnvFollowsBackendFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("OPENAI_BASE_URL", "http://vllm:8000/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("C_ID", "42")

	c, err := parse(t, "-backend", "openai")
	require.NoError(t, err)
	assert.Equal(t, "http://vllm:8000/v1", c.BaseURL)
	assert.Equal(t, "sk-test", c.APIKey)
	assert.Equal(t, "42", c.TelegramChatID)

	c, err = parse(t)
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", c.BaseURL)
	assert.Empty(t, c.APIKey)
}

func TestResolve_ChatIDWithoutTokenIsNotFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv("C_ID", "42")
	path := writeSettings(t, "delivery:\n  telegram_chat_id: \"-100777\"\n")

	c, err := parse(t, "-deliver=false")
	require.NoError(t, err)
	assert.False(t, c.Deliver)

	c, err = parse(t, "-config", path)
	require.NoError(t, err)
	ds := c.Deliverers()
	require.Len(t, ds, 1)
	assert.ErrorIs(t, ds[0].Deliver(t.Context(), "output.json"), delivery.ErrNotConfigured)
}

func TestResolve_InvalidFile(t *testing.T) {
	clearEnv(t)
	path := writeSettings(t, "model:\n  backend: claude\n")

	_, err := parse(t, "-config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.backend")
}

func TestResolve_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := parse(t, "-config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := DefaultCommon(transcript.ParseRaw)
	require.NoError(t, c.Validate())

	c.ParseMode = "xml"
	c.MaxPages = -1
	c.ModelURL = "https://example.com/model.gguf"
	c.LogLevel = "loud"
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{`unknown parse mode "xml"`, "-max-pages", "-model-path", "-log-level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMaxWords(t *testing.T) {
	path := writeSettings(t, "generation:\n  max_words: 800\n")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	words := fs.Int("max-words", 1500, "")
	require.NoError(t, fs.Parse(nil))
	n, err := MaxWords(fs, path, *words)
	require.NoError(t, err)
	assert.Equal(t, 800, n)

	require.NoError(t, fs.Parse([]string{"-max-words", "300"}))
	n, err = MaxWords(fs, path, *words)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}

func TestDeliverers(t *testing.T) {
	c := DefaultCommon(transcript.ParseJSON)
	ds := c.Deliverers()
	require.Len(t, ds, 1)
	assert.Equal(t, "telegram", ds[0].Name())

	c.ArchiveDir = t.TempDir()
	ds = c.Deliverers()
	require.Len(t, ds, 2)
	assert.IsType(t, delivery.ArchiveDir{}, ds[0])
}

func TestProvision_NoPathIsNoop(t *testing.T) {
	c := DefaultCommon(transcript.ParseJSON)
	assert.NoError(t, c.Provision(t.Context(), nil, io.Discard))
}

func TestProvision_ExistingFileIsHandedToServer(t *testing.T) {
	c := DefaultCommon(transcript.ParseJSON)
	c.ModelPath = filepath.Join(t.TempDir(), "model.gguf")
	require.NoError(t, os.WriteFile(c.ModelPath, []byte("gguf"), 0o644))

	var logs bytes.Buffer
	require.NoError(t, c.Provision(t.Context(), c.Logger(&logs), io.Discard))
	assert.Contains(t, logs.String(), c.ModelPath)
	assert.Contains(t, logs.String(), "ollama server must be pointed at it")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.Register(fs)
	assert.Contains(t, fs.Lookup("model-path").Usage, "the backend server loads it")
}

func TestResolve_Temperature(t *testing.T) {
	clearEnv(t)

	c, err := parse(t)
	require.NoError(t, err)
	assert.Nil(t, c.temperature(), "unset leaves the backend default")

	c, err = parse(t, "-temperature", "0")
	require.NoError(t, err)
	require.NotNil(t, c.temperature())
	assert.Zero(t, *c.temperature())

	path := writeSettings(t, "model:\n  temperature: 0\n")
	c, err = parse(t, "-config", path)
	require.NoError(t, err)
	require.NotNil(t, c.temperature(), "explicit 0 in the file is kept")
	assert.Zero(t, *c.temperature())

	c.Temperature = 2.5
	assert.ErrorContains(t, c.Validate(), "-temperature")
}
