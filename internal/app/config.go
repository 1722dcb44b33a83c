package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	LogMode        string        `yaml:"log_mode"`
	DatabaseURL    string        `yaml:"database_url"`
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	JWTIssuer      string        `yaml:"jwt_issuer"`
	PollingOnStart bool          `yaml:"report_polling_autostart"`
	Keepa          KeepaConfig   `yaml:"keepa"`
	Ads            LWAAppConfig  `yaml:"ads_api"`
	SPAPI          LWAAppConfig  `yaml:"sp_api"`
	Reviews        ReviewsConfig `yaml:"reviews"`
}

type KeepaConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Domain  int    `yaml:"domain"`
}

// LWAAppConfig carries one Login with Amazon application. ProfileID is only used by the Ads API,
// Region only by SP-API.
type LWAAppConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	ProfileID    string `yaml:"profile_id"`
	Region       string `yaml:"region"`
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
}

func (c LWAAppConfig) configured() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

type ReviewsConfig struct {
	Token   string        `yaml:"token"`
	BaseURL string        `yaml:"base_url"`
	Actor   string        `yaml:"actor"`
	MaxWait time.Duration `yaml:"max_wait"`
}

func defaultConfig() Config {
	return Config{
		Port:    "8080",
		LogMode: "development",
		Keepa:   KeepaConfig{Domain: 1},
		SPAPI:   LWAAppConfig{Region: "na"},
		Reviews: ReviewsConfig{MaxWait: 5 * time.Minute},
	}
}

// LoadConfig reads .env (if present), then CONFIG_FILE (if set), then applies environment
// overrides. Environment always wins.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogMode, "LOG_MODE")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecretKey, "JWT_SECRET_KEY")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setBool(&cfg.PollingOnStart, "REPORT_POLLING_AUTOSTART")

	setString(&cfg.Keepa.APIKey, "KEEPA_API_KEY")
	setString(&cfg.Keepa.BaseURL, "KEEPA_BASE_URL")
	setInt(&cfg.Keepa.Domain, "KEEPA_DOMAIN")

	setString(&cfg.Ads.ClientID, "ADS_API_CLIENT_ID")
	setString(&cfg.Ads.ClientSecret, "ADS_API_CLIENT_SECRET")
	setString(&cfg.Ads.RefreshToken, "ADS_API_REFRESH_TOKEN")
	setString(&cfg.Ads.ProfileID, "ADS_API_PROFILE_ID")
	setString(&cfg.Ads.BaseURL, "ADS_API_BASE_URL")
	setString(&cfg.Ads.TokenURL, "LWA_TOKEN_URL")

	setString(&cfg.SPAPI.ClientID, "SPAPI_CLIENT_ID")
	setString(&cfg.SPAPI.ClientSecret, "SPAPI_CLIENT_SECRET")
	setString(&cfg.SPAPI.RefreshToken, "SPAPI_REFRESH_TOKEN")
	setString(&cfg.SPAPI.Region, "SPAPI_REGION")
	setString(&cfg.SPAPI.BaseURL, "SPAPI_BASE_URL")
	setString(&cfg.SPAPI.TokenURL, "LWA_TOKEN_URL")

	setString(&cfg.Reviews.Token, "APIFY_API_TOKEN")
	setString(&cfg.Reviews.BaseURL, "APIFY_BASE_URL")
	setString(&cfg.Reviews.Actor, "APIFY_REVIEWS_ACTOR")
	if v := strings.TrimSpace(os.Getenv("APIFY_MAX_WAIT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Reviews.MaxWait = time.Duration(n) * time.Second
		}
	}
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if strings.TrimSpace(c.Keepa.APIKey) == "" {
		missing = append(missing, "KEEPA_API_KEY")
	}
	if strings.TrimSpace(c.SPAPI.ClientID) == "" {
		missing = append(missing, "SPAPI_CLIENT_ID")
	}
	if strings.TrimSpace(c.SPAPI.ClientSecret) == "" {
		missing = append(missing, "SPAPI_CLIENT_SECRET")
	}
	if strings.TrimSpace(c.SPAPI.RefreshToken) == "" {
		missing = append(missing, "SPAPI_REFRESH_TOKEN")
	}
	if c.Ads.configured() && strings.TrimSpace(c.Ads.ProfileID) == "" {
		missing = append(missing, "ADS_API_PROFILE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if _, err := strconv.Atoi(strings.TrimSpace(c.Port)); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
