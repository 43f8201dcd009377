package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Metric store backends
const (
	StoreCDF      = "cdf"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Wordfeud account
	WordfeudEmail      string        `envconfig:"WORDFEUD_EMAIL" required:"true" validate:"required,email"`
	WordfeudPassword   string        `envconfig:"WORDFEUD_PASSWORD" required:"true" validate:"required"`
	WordfeudUsername   string        `envconfig:"WORDFEUD_USERNAME" required:"true" validate:"required"`
	WordfeudBaseURL    string        `envconfig:"WORDFEUD_BASE_URL" default:"https://api.wordfeud.com/wf" validate:"url"`
	WordfeudTimeout    time.Duration `envconfig:"WORDFEUD_TIMEOUT" default:"30s"`
	WordfeudBoardType  string        `envconfig:"WORDFEUD_BOARD_TYPE" default:"BoardNormal" validate:"oneof=BoardNormal BoardRandom"`
	WordfeudRuleSet    string        `envconfig:"WORDFEUD_RULE_SET" default:"RuleSetNorwegian" validate:"oneof=RuleSetAmerican RuleSetDanish RuleSetDutch RuleSetEnglish RuleSetFrench RuleSetNorwegian RuleSetSpanish RuleSetSwedish"`
	WordfeudRateLimit  float64       `envconfig:"WORDFEUD_RATE_LIMIT" default:"2" validate:"gt=0"`
	WordfeudSessionTTL time.Duration `envconfig:"WORDFEUD_SESSION_TTL" default:"12h"`

	// Metric store
	MetricStore string `envconfig:"METRIC_STORE" default:"cdf" validate:"oneof=cdf postgres"`
	Namespace   string `envconfig:"NAMESPACE" default:"WORDFEUD" validate:"required"`

	// Cognite Data Fusion
	CDFProject      string        `envconfig:"CDF_PROJECT" validate:"required_if=MetricStore cdf"`
	CDFBaseURL      string        `envconfig:"CDF_BASE_URL" default:"https://api.cognitedata.com" validate:"url"`
	CDFClientID     string        `envconfig:"CDF_CLIENT_ID" validate:"required_if=MetricStore cdf"`
	CDFClientSecret string        `envconfig:"CDF_CLIENT_SECRET" validate:"required_if=MetricStore cdf"`
	CDFTenantID     string        `envconfig:"CDF_TENANT_ID"`
	CDFTokenURL     string        `envconfig:"CDF_TOKEN_URL" validate:"omitempty,url"`
	CDFDataSetID    int64         `envconfig:"CDF_DATASET_ID" default:"-1"`
	CDFTimeout      time.Duration `envconfig:"CDF_TIMEOUT" default:"30s"`

	// Extraction pipeline
	ExtractionPipeline string `envconfig:"EXTRACTION_PIPELINE"`
	ReportRuns         bool   `envconfig:"REPORT_RUNS" default:"true"`

	// Database (METRIC_STORE=postgres)
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"wordfeud"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"wordfeud"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" validate:"required_if=MetricStore postgres"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	SyncCron           string        `envconfig:"SYNC_CRON" default:"*/15 * * * *"`
	SyncLockTTL        time.Duration `envconfig:"SYNC_LOCK_TTL" default:"10m"`

	// Circuit breaker shared by the outbound clients
	BreakerFailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5" validate:"gt=0"`
	BreakerOpenTimeout      time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"5m"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if cfg.ExtractionPipeline == "" {
		cfg.ExtractionPipeline = "extractors/wordfeud-" + cfg.WordfeudUsername
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.MetricStore == StoreCDF && c.CDFTokenURL == "" && c.CDFTenantID == "" {
		return fmt.Errorf("either CDF_TOKEN_URL or CDF_TENANT_ID must be provided")
	}

	if c.ReportRuns && c.ExtractionPipeline == "" {
		return fmt.Errorf("EXTRACTION_PIPELINE is required when REPORT_RUNS is enabled")
	}

	return nil
}

// TokenURL returns the OAuth token endpoint for CDF.
// An explicit CDF_TOKEN_URL wins over the Azure AD endpoint derived from the tenant.
func (c *Config) TokenURL() string {
	if c.CDFTokenURL != "" {
		return c.CDFTokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.CDFTenantID)
}

// DataSetID returns the configured data set, or nil when unset (-1)
func (c *Config) DataSetID() *int64 {
	if c.CDFDataSetID < 0 {
		return nil
	}
	id := c.CDFDataSetID
	return &id
}

// CDFScopes returns the client credential scopes for the cluster
func (c *Config) CDFScopes() []string {
	return []string{strings.TrimRight(c.CDFBaseURL, "/") + "/.default"}
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
