// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	APIs         APIsConfig              `mapstructure:"apis"`
	Matching     MatchingConfig          `mapstructure:"matching"`
	Popularity   PopularityConfig        `mapstructure:"popularity"`
	Integrations IntegrationConfig       `mapstructure:"integrations"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Tracing      TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP API settings. InternalSecret guards the
// recompute trigger.
type ServerConfig struct {
	Addr            string   `mapstructure:"addr"`
	InternalSecret  string   `mapstructure:"internal_secret"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ListingIndex string   `mapstructure:"listing_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// APIsConfig holds settings for the collaborator services.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`

	Embedding struct {
		BaseURL   string `mapstructure:"base_url"`
		Token     string `mapstructure:"token"`
		Model     string `mapstructure:"model"`
		Dimension int    `mapstructure:"dimension"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"embedding"`
}

// MatchingWeights are the blend weights of the three score components.
type MatchingWeights struct {
	Structured float64 `mapstructure:"structured"`
	Semantic   float64 `mapstructure:"semantic"`
	Freshness  float64 `mapstructure:"freshness"`
}

type MatchingConfig struct {
	Weights               MatchingWeights `mapstructure:"weights"`
	DefaultTopK           int             `mapstructure:"default_top_k"`
	MaxTopK               int             `mapstructure:"max_top_k"`
	MaxReasons            int             `mapstructure:"max_reasons"`
	FreshnessHalfLifeDays float64         `mapstructure:"freshness_half_life_days"`
	CandidateSource       string          `mapstructure:"candidate_source"` // postgres | elasticsearch
	CandidateLimit        int             `mapstructure:"candidate_limit"`
	ProfileCacheTTL       int             `mapstructure:"profile_cache_ttl"` // milliseconds
}

type PopularityConfig struct {
	WindowDays         int     `mapstructure:"window_days"`
	SaveWeight         float64 `mapstructure:"save_weight"`
	ViewWeight         float64 `mapstructure:"view_weight"`
	RecencyBonusPerDay float64 `mapstructure:"recency_bonus_per_day"`
	MostSavedMin       int     `mapstructure:"most_saved_min"`
	MostViewedMin      int     `mapstructure:"most_viewed_min"`
	TrendingSavesFloor int     `mapstructure:"trending_saves_floor"`
	TrendingViewsFloor int     `mapstructure:"trending_views_floor"`
	TrendingPercentile float64 `mapstructure:"trending_percentile"`
	Schedule           string  `mapstructure:"schedule"`
	LockTTL            int     `mapstructure:"lock_ttl"` // milliseconds
	Concurrency        int     `mapstructure:"concurrency"`
}

// IntegrationConfig holds settings for outbound integrations.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables the Jaeger trace exporter.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
