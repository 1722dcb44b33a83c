package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("KEEPA_API_KEY", "keepa")
	t.Setenv("SPAPI_CLIENT_ID", "id")
	t.Setenv("SPAPI_CLIENT_SECRET", "shh")
	t.Setenv("SPAPI_REFRESH_TOKEN", "refresh")
}

func TestLoadConfigListsEveryMissingKey(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	for _, k := range []string{"JWT_SECRET_KEY", "KEEPA_API_KEY", "SPAPI_CLIENT_ID", "SPAPI_CLIENT_SECRET", "SPAPI_REFRESH_TOKEN"} {
		t.Setenv(k, "")
	}
	_, err := LoadConfig()
	require.Error(t, err)
	for _, k := range []string{"JWT_SECRET_KEY", "KEEPA_API_KEY", "SPAPI_CLIENT_ID", "SPAPI_CLIENT_SECRET", "SPAPI_REFRESH_TOKEN"} {
		require.Contains(t, err.Error(), k)
	}
}

func TestLoadConfigFileWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
keepa:
  api_key: from-file
  domain: 3
reviews:
  token: apify
  max_wait: 2m
`), 0o600))

	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")
	t.Setenv("KEEPA_API_KEY", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "from-env", cfg.Keepa.APIKey)
	require.Equal(t, 3, cfg.Keepa.Domain)
	require.Equal(t, 2*time.Minute, cfg.Reviews.MaxWait)
	require.Equal(t, "na", cfg.SPAPI.Region)
}

func TestAdsCredentialsNeedProfile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ADS_API_CLIENT_ID", "ads")
	t.Setenv("ADS_API_CLIENT_SECRET", "ads-secret")
	t.Setenv("ADS_API_REFRESH_TOKEN", "ads-refresh")
	t.Setenv("ADS_API_PROFILE_ID", "")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "ADS_API_PROFILE_ID")

	t.Setenv("ADS_API_PROFILE_ID", "123")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.Ads.configured())
}
