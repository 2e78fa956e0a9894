package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"EBOEKHOUDEN_API_URL", "EBOEKHOUDEN_API_TOKEN", "ROUNDING_TOLERANCE", "CURRENCY", "DATA_ROOT", "SYNC_SCHEDULE", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.e-boekhouden.nl", cfg.EBoekhouden.APIURL)
	assert.Equal(t, "eboekhouden-sync", cfg.EBoekhouden.Source)
	assert.Equal(t, "0.05", cfg.Import.RoundingTolerance.StringFixed(2))
	assert.Equal(t, "EUR", cfg.Storage.Currency)
	assert.Equal(t, "./data", cfg.Storage.DataRoot)
	assert.Equal(t, "0 6 * * *", cfg.Import.Schedule)
	assert.False(t, cfg.Debug)
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "EBOEKHOUDEN_API_TOKEN=secret\nROUNDING_TOLERANCE=0.10\nCURRENCY=eur\nDEBUG=true\nROUND_OFF_ACCOUNT=8990 - Afronding\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	for _, key := range []string{"EBOEKHOUDEN_API_TOKEN", "ROUNDING_TOLERANCE", "CURRENCY", "DEBUG", "ROUND_OFF_ACCOUNT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.EBoekhouden.APIToken)
	assert.Equal(t, "0.10", cfg.Import.RoundingTolerance.StringFixed(2))
	assert.Equal(t, "EUR", cfg.Storage.Currency)
	assert.Equal(t, "8990 - Afronding", cfg.Import.RoundOffAccount)
	assert.True(t, cfg.Debug)
}

func TestLoadInvalidTolerance(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ROUNDING_TOLERANCE", "abc")
	_, err := Load()
	assert.ErrorContains(t, err, "ROUNDING_TOLERANCE")

	t.Setenv("ROUNDING_TOLERANCE", "-1")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		EBoekhouden: EBoekhoudenConfig{APIURL: "http://localhost:8080"},
		Storage:     StorageConfig{DataRoot: "./data"},
	}

	assert.NoError(t, cfg.Validate([]string{"eboekhouden", "apiUrl"}, []string{"storage", "dataRoot"}))

	err := cfg.Validate([]string{"eboekhouden", "apiToken"}, []string{"import", "roundOffAccount"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eboekhouden.apiToken")
	assert.Contains(t, err.Error(), "import.roundOffAccount")
}
