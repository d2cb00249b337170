package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: grant-intake
  environment: test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Wizard.Store)
	assert.Equal(t, 800, cfg.Wizard.AutosaveDebounce)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "grant-applications", cfg.Search.Index)
	assert.Equal(t, "grant-application-review", cfg.Camunda.ReviewProcessID)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("INTAKE_TEST_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
wizard:
  store: postgres
database:
  postgres:
    host: localhost
    database: intake
    user: intake
    password: ${INTAKE_TEST_DB_PASSWORD}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t,
		"host=localhost port=5432 user=intake password=s3cret dbname=intake sslmode=disable",
		cfg.Database.Postgres.GetDSN())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown store",
			body: "wizard:\n  store: sqlite\n",
		},
		{
			name: "postgres without host",
			body: "wizard:\n  store: postgres\n",
		},
		{
			name: "tiered without redis",
			body: `
wizard:
  store: tiered
database:
  postgres:
    host: localhost
    database: intake
    user: intake
`,
		},
		{
			name: "search without elasticsearch",
			body: "search:\n  enabled: true\n",
		},
		{
			name: "camunda without broker",
			body: "camunda:\n  enabled: true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestElasticsearchConfig_GetURL(t *testing.T) {
	assert.Equal(t, "http://a:9200", ElasticsearchConfig{URL: "http://a:9200", Addresses: []string{"http://b:9200"}}.GetURL())
	assert.Equal(t, "http://b:9200", ElasticsearchConfig{Addresses: []string{"http://b:9200"}}.GetURL())
	assert.Equal(t, "", ElasticsearchConfig{}.GetURL())
}
