package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
db:
  host: localhost
  port: 5432
notifier:
  timezone: UTC
  delivery_timeout: 45s
  overdue_at: "10:30"
`), 0o600))

	cfg, err := LoadFrom("local", dir)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 45*time.Second, cfg.Notifier.DeliveryTimeout)
	assert.Equal(t, "10:30", cfg.Notifier.OverdueAt)
	assert.Equal(t, "08:00", cfg.Notifier.DigestAt)
	assert.Equal(t, 4, cfg.Notifier.Workers)
	assert.Equal(t, ":8080", cfg.Server.Port)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromRejectsUnknownTimezone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("notifier:\n  timezone: Mars/Olympus\n"), 0o600))

	_, err := LoadFrom("local", dir)
	assert.Error(t, err)
}

func TestNotifierTimezoneFromEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("notifier:\n  workers: 2\n"), 0o600))
	t.Setenv("NOTIFIER_TIMEZONE", "UTC")

	cfg, err := LoadFrom("local", dir)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Notifier.Timezone)
	assert.Equal(t, 2, cfg.Notifier.Workers)
}

func TestProductionRequiresSMTPHost(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("smtp:\n  host: \"\"\n"), 0o600))
	t.Setenv("SMTP_HOST", "")

	_, err := LoadFrom("production", dir)
	assert.ErrorIs(t, err, ErrSMTPHostRequired)

	_, err = LoadFrom("local", dir)
	assert.NoError(t, err)

	t.Setenv("SMTP_HOST", "smtp.example.com")
	cfg, err := LoadFrom("production", dir)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
}
