package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig
	BrightData BrightDataConfig
	Search     SearchConfig
	Sweep      SweepConfig
	Providers  ProvidersConfig
	DBPath     string
	LogLevel   string
}

type ServerConfig struct {
	Port            int
	SessionTTL      time.Duration
	ShutdownTimeout time.Duration
}

// BrightDataConfig holds the Web Unlocker proxy credentials. When Username or
// Password is empty, requests go out directly.
type BrightDataConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Enabled  bool
}

type SearchConfig struct {
	PageDelayMS int
	MaxPages    int
}

type SweepConfig struct {
	DelayMS       int
	CrimeCacheTTL time.Duration
}

// ProvidersConfig carries the upstream endpoints; overridable from
// config/providers.yaml so a blocked endpoint can be swapped without a
// rebuild.
type ProvidersConfig struct {
	ZillowSearchURL   string `yaml:"zillow_search_url"`
	ZillowDetailURL   string `yaml:"zillow_detail_url"`
	CrimeGradeBaseURL string `yaml:"crimegrade_base_url"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8000),
			SessionTTL:      getEnvDuration("SESSION_TTL", time.Hour),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		BrightData: BrightDataConfig{
			Host:     getEnv("BRIGHTDATA_HOST", "brd.superproxy.io"),
			Port:     getEnvInt("BRIGHTDATA_PORT", 33335),
			Username: os.Getenv("BRIGHTDATA_USERNAME"),
			Password: os.Getenv("BRIGHTDATA_PASSWORD"),
			Enabled:  getEnv("USE_ZILLOW_PROXY", "true") == "true",
		},
		Search: SearchConfig{
			PageDelayMS: getEnvInt("SEARCH_PAGE_DELAY_MS", 500),
			MaxPages:    getEnvInt("SEARCH_MAX_PAGES", 20),
		},
		Sweep: SweepConfig{
			DelayMS:       getEnvInt("SWEEP_DELAY_MS", 500),
			CrimeCacheTTL: getEnvDuration("CRIME_CACHE_TTL", 30*24*time.Hour),
		},
		Providers: ProvidersConfig{
			ZillowSearchURL:   "https://www.zillow.com/async-create-search-page-state",
			ZillowDetailURL:   "https://www.zillow.com/homedetails/property/%s_zpid/",
			CrimeGradeBaseURL: "https://crimegrade.org",
		},
		DBPath:   getEnv("DB_PATH", "househunters.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.loadProviderOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadProviderOverrides() error {
	path := getEnv("PROVIDERS_CONFIG", "config/providers.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var overrides ProvidersConfig
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return err
	}
	if overrides.ZillowSearchURL != "" {
		c.Providers.ZillowSearchURL = overrides.ZillowSearchURL
	}
	if overrides.ZillowDetailURL != "" {
		c.Providers.ZillowDetailURL = overrides.ZillowDetailURL
	}
	if overrides.CrimeGradeBaseURL != "" {
		c.Providers.CrimeGradeBaseURL = overrides.CrimeGradeBaseURL
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
