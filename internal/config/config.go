// Package config loads the worker process's environment configuration,
// including the file paths of its YAML policy tables (tier defaults,
// provider costs), into a single struct with a companion Defaults()
// constructor. The tables themselves are loaded by their owning packages.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the worker process's environment configuration.
type Config struct {
	DatabaseURL     string        `validate:"required"`
	RedisURL        string        `validate:"required"`
	EncryptionKey   string        `validate:"required,len=32"`
	SchedulerEnabled    bool
	SchedulerTickInterval time.Duration `validate:"required"`
	SchedulerBatchSize    int           `validate:"required,min=1"`
	TierPolicyEnabled     bool
	CanaryWorkspaceIDs    []string
	BrightdataAPIKey      string
	BrightdataZone        string
	BrightdataProxyURL    string
	ScrapingBrowserProxyURL string
	TwoCaptchaAPIKey      string
	TwoCaptchaProxyURL    string
	TwoCaptchaDatadomeProxyURL string
	FlaresolverrEndpoint  string
	PrometheusListenAddr  string
	TierPolicyConfigPath  string
	ProviderCostConfigPath string
}

// Defaults returns a Config with every non-secret field at its documented
// default, so only the required secrets need to come from the environment.
func Defaults() Config {
	return Config{
		SchedulerEnabled:       true,
		SchedulerTickInterval:  5000 * time.Millisecond,
		SchedulerBatchSize:     500,
		TierPolicyEnabled:      true,
		PrometheusListenAddr:   ":9090",
		TierPolicyConfigPath:   "config/tier_policy.yaml",
		ProviderCostConfigPath: "config/provider_costs.yaml",
	}
}

// Load reads the worker config from the process environment, starting from
// Defaults() and validating the result.
func Load() (Config, error) {
	cfg := Defaults()

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	cfg.BrightdataAPIKey = os.Getenv("BRIGHTDATA_API_KEY")
	cfg.BrightdataZone = os.Getenv("BRIGHTDATA_ZONE")
	cfg.BrightdataProxyURL = os.Getenv("BRIGHTDATA_PROXY_URL")
	cfg.ScrapingBrowserProxyURL = os.Getenv("SCRAPINGBROWSER_PROXY_URL")
	cfg.TwoCaptchaAPIKey = os.Getenv("TWOCAPTCHA_API_KEY")
	cfg.TwoCaptchaProxyURL = os.Getenv("TWOCAPTCHA_PROXY_URL")
	cfg.TwoCaptchaDatadomeProxyURL = os.Getenv("TWOCAPTCHA_DATADOME_PROXY_URL")
	cfg.FlaresolverrEndpoint = os.Getenv("FLARESOLVERR_ENDPOINT")

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.SchedulerEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SCHEDULER_TICK_INTERVAL"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SCHEDULER_TICK_INTERVAL: %w", err)
		}
		cfg.SchedulerTickInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("SCHEDULER_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: SCHEDULER_BATCH_SIZE: %w", err)
		}
		cfg.SchedulerBatchSize = n
	}
	if v := os.Getenv("TIER_POLICY_ENABLED"); v != "" {
		cfg.TierPolicyEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CANARY_WORKSPACE_IDS"); v != "" {
		cfg.CanaryWorkspaceIDs = strings.Split(v, ",")
	}
	if v := os.Getenv("PROMETHEUS_LISTEN_ADDR"); v != "" {
		cfg.PrometheusListenAddr = v
	}
	if v := os.Getenv("TIER_POLICY_CONFIG_PATH"); v != "" {
		cfg.TierPolicyConfigPath = v
	}
	if v := os.Getenv("PROVIDER_COST_CONFIG_PATH"); v != "" {
		cfg.ProviderCostConfigPath = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// IsCanaryWorkspace reports whether workspaceID is in the configured canary
// rollout list, used to gate experimental tier-policy behavior.
func (c Config) IsCanaryWorkspace(workspaceID string) bool {
	for _, id := range c.CanaryWorkspaceIDs {
		if id == workspaceID {
			return true
		}
	}
	return false
}
