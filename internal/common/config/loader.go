// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on
// top and expands ${VAR} placeholders.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from well-known env vars when the file left them empty.
func overrideEmptyConfig(cfg *Config) {
	fill := func(dst *string, env string) {
		if *dst == "" {
			if val := os.Getenv(env); val != "" {
				*dst = val
			}
		}
	}

	fill(&cfg.Server.InternalSecret, "INTERNAL_SHARED_SECRET")
	fill(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	fill(&cfg.APIs.Embedding.Token, "EMBEDDING_API_TOKEN")
	fill(&cfg.Database.Postgres.User, "DB_USER")
	fill(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	fill(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	fill(&cfg.Integrations.AWS.SNS.TopicARN, "POPULARITY_TOPIC_ARN")
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketplace-engine"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ListingIndex == "" {
		cfg.Database.Elasticsearch.ListingIndex = "listings"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}

	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 5000
	}
	if cfg.APIs.Embedding.Dimension == 0 {
		cfg.APIs.Embedding.Dimension = 1536
	}
	if cfg.APIs.Embedding.Model == "" {
		cfg.APIs.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 5000
	}

	m := &cfg.Matching
	if m.Weights == (MatchingWeights{}) {
		m.Weights = MatchingWeights{Structured: 0.5, Semantic: 0.4, Freshness: 0.1}
	}
	if m.MaxTopK == 0 {
		m.MaxTopK = 50
	}
	if m.DefaultTopK == 0 {
		m.DefaultTopK = 20
	}
	if m.MaxReasons == 0 {
		m.MaxReasons = 10
	}
	if m.FreshnessHalfLifeDays == 0 {
		m.FreshnessHalfLifeDays = 30
	}
	if m.CandidateSource == "" {
		m.CandidateSource = "postgres"
	}
	if m.CandidateLimit == 0 {
		m.CandidateLimit = 500
	}
	if m.ProfileCacheTTL == 0 {
		m.ProfileCacheTTL = 3600000
	}

	p := &cfg.Popularity
	if p.WindowDays == 0 {
		p.WindowDays = 7
	}
	if p.SaveWeight == 0 {
		p.SaveWeight = 5
	}
	if p.ViewWeight == 0 {
		p.ViewWeight = 1
	}
	if p.RecencyBonusPerDay == 0 {
		p.RecencyBonusPerDay = 0.5
	}
	if p.MostSavedMin == 0 {
		p.MostSavedMin = 5
	}
	if p.MostViewedMin == 0 {
		p.MostViewedMin = 60
	}
	if p.TrendingSavesFloor == 0 {
		p.TrendingSavesFloor = 3
	}
	if p.TrendingViewsFloor == 0 {
		p.TrendingViewsFloor = 25
	}
	if p.TrendingPercentile == 0 {
		p.TrendingPercentile = 0.1
	}
	if p.Schedule == "" {
		p.Schedule = "@every 1h"
	}
	if p.LockTTL == 0 {
		p.LockTTL = 300000
	}
	if p.Concurrency == 0 {
		p.Concurrency = 8
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Matching.CandidateSource {
	case "postgres":
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch candidate source")
		}
	default:
		return fmt.Errorf("matching.candidate_source must be postgres or elasticsearch, got %q", cfg.Matching.CandidateSource)
	}

	w := cfg.Matching.Weights
	if w.Structured < 0 || w.Semantic < 0 || w.Freshness < 0 {
		return fmt.Errorf("matching.weights must be non-negative")
	}
	if w.Structured+w.Semantic+w.Freshness <= 0 {
		return fmt.Errorf("matching.weights must not all be zero")
	}
	if cfg.Matching.MaxTopK < 1 || cfg.Matching.MaxTopK > 50 {
		return fmt.Errorf("matching.max_top_k must be within 1..50")
	}
	if cfg.Matching.DefaultTopK > cfg.Matching.MaxTopK {
		return fmt.Errorf("matching.default_top_k exceeds matching.max_top_k")
	}

	if cfg.Popularity.TrendingPercentile <= 0 || cfg.Popularity.TrendingPercentile > 1 {
		return fmt.Errorf("popularity.trending_percentile must be within (0,1]")
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
