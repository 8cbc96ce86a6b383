package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  name: alertradar-test
  web_url: https://app.example.com
database:
  host: db.internal
  port: 6543
  password: from-file
nats:
  fetch_timeout: 2s
smtp:
  host: smtp.example.com
  from: alerts@example.com
canary:
  token: file-token
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "alertradar-test", cfg.App.Name)
	assert.Equal(t, "https://app.example.com", cfg.App.WebURL)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "from-file", cfg.Database.Password.Value())
	assert.Equal(t, 2*time.Second, cfg.NATS.FetchTimeout)
	assert.True(t, cfg.SMTP.Configured())

	// 文件未提及的字段保留默认值
	assert.Equal(t, "QUOTES_STREAM", cfg.NATS.Stream)
	assert.Equal(t, "quotes.batch", cfg.NATS.Subject)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("DB_PORT", "7000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("NATS_FETCH_TIMEOUT", "750ms")
	t.Setenv("CANARY_TOKEN", "env-token")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 7000, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.NATS.FetchTimeout)
	assert.Equal(t, "env-token", cfg.Canary.Token.Value())
}

func TestLoadConfig_InvalidEnvNumber(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	_, err := LoadConfig(writeConfig(t, sampleYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "******", s.String())
	assert.Equal(t, "******", fmt.Sprintf("%v", s))
	assert.Equal(t, "******", fmt.Sprintf("%#v", s))
	assert.NotContains(t, fmt.Sprintf("%+v", SMTPConfig{Password: s}), "hunter2")
	assert.Equal(t, "hunter2", s.Value())
	assert.Equal(t, "", Secret("").String())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"******"`, string(b))
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_ENV", "")
	assert.Equal(t, "configs/dev/app.yaml", GetDefaultConfigPath())

	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, "configs/prod/app.yaml", GetDefaultConfigPath())

	t.Setenv("CONFIG_PATH", "/etc/alertradar.yaml")
	assert.Equal(t, "/etc/alertradar.yaml", GetDefaultConfigPath())
}
