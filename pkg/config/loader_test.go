package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadConfigMergesEnvOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
notifier:
  workers: 4
  overdue_at: "09:00"
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
notifier:
  workers: 8
`)

	cfg, err := LoadConfig("production", dir)
	require.NoError(t, err)

	db := cfg["db"].(map[string]interface{})
	assert.Equal(t, "db.internal", db["host"])
	assert.Equal(t, 5432, db["port"])

	notifier := cfg["notifier"].(map[string]interface{})
	assert.Equal(t, 8, notifier["workers"])
	assert.Equal(t, "09:00", notifier["overdue_at"])
}

func TestLoadConfigSubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
smtp:
  password: "${SMTP_SECRET}"
  from: noreply@todolist.app
`)
	writeFile(t, dir, "secrets.env", "# comment\nSMTP_SECRET=\"s3cret\"\n")

	cfgMap, err := LoadConfig("local", dir)
	require.NoError(t, err)

	var out struct {
		SMTP SMTPConfig `yaml:"smtp"`
	}
	require.NoError(t, Decode(cfgMap, &out))
	assert.Equal(t, "s3cret", out.SMTP.Password)
	assert.Equal(t, "noreply@todolist.app", out.SMTP.From)
}

func TestLoadConfigMissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
}

func TestOverrideSMTPFromEnv(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg := SMTPConfig{Host: "localhost", Port: 587}
	OverrideSMTPFromEnv(&cfg)

	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, 2525, cfg.Port)
}
