package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
app:
  name: crm-pro
  env: test
http:
  port: 9090
sheets:
  apps_script_url: https://script.google.com/macros/s/abc/exec
campaign:
  send_delay: 250ms
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, 250*time.Millisecond, cfg.Campaign.SendDelay)
	assert.Equal(t, "212", cfg.Sheets.DefaultCountryCode)
	assert.Equal(t, "v18.0", cfg.WhatsApp.APIVersion)
	assert.Equal(t, "0.001", cfg.Campaign.CostPerMessage)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.StaleAfter)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.QueuedAfter)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRM_CAMPAIGN_SEND_DELAY", "2s")
	t.Setenv("CRM_HTTP_PORT", "7070")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Campaign.SendDelay)
	assert.Equal(t, 7070, cfg.HTTP.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
