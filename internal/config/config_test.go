package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	return Load(fs, args)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t, "--auth.secret=s3cret")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "studyset.db", cfg.Database.Path)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModel)
	assert.Equal(t, int64(20<<20), cfg.AI.MaxUploadBytes)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Sync.Extensions)
	assert.Equal(t, 6.0, cfg.Limits.GeneratePerMinute)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`
server:
  addr: ":9000"
database:
  path: /var/lib/studyset/file.db
ai:
  chat_model: file-model
auth:
  secret: from-file
log:
  level: debug
`), 0o644))

	t.Setenv("STUDYSET_AI__CHAT_MODEL", "env-model")
	t.Setenv("STUDYSET_SYNC__EXTENSIONS", ".md, .org")
	t.Setenv("STUDYSET_AUTH__TOKEN_TTL", "2h")
	t.Setenv("STUDYSET_LIMITS__GENERATE_BURST", "7")

	cfg, err := load(t, "--log.level=warn")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr, "file over default")
	assert.Equal(t, "/var/lib/studyset/file.db", cfg.Database.Path)
	assert.Equal(t, "env-model", cfg.AI.ChatModel, "env over file")
	assert.Equal(t, "warn", cfg.Log.Level, "flag over file")
	assert.Equal(t, []string{".md", ".org"}, cfg.Sync.Extensions)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 7, cfg.Limits.GenerateBurst)
	assert.Equal(t, "from-file", cfg.Auth.Secret)
}

func TestLoadExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  dev_uid: dev\n"), 0o644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Auth.DevUID)

	_, err = load(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	t.Chdir(t.TempDir())

	testCases := []struct {
		name string
		args []string
	}{
		{name: "no secret or dev uid", args: nil},
		{name: "bad log level", args: []string{"--auth.secret=x", "--log.level=loud"}},
		{name: "bad log format", args: []string{"--auth.secret=x", "--log.format=xml"}},
		{name: "empty database path", args: []string{"--auth.secret=x", "--database.path="}},
		{name: "extension without dot", args: []string{"--auth.secret=x", "--sync.extensions=md"}},
		{name: "zero upload size", args: []string{"--auth.secret=x", "--ai.max_upload_bytes=0"}},
		{name: "bad base url", args: []string{"--auth.secret=x", "--ai.base_url=not a url"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.args...)
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
