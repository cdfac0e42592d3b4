// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Cookies   CookieConfig    `mapstructure:"cookies"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Ancestry  AncestryConfig  `mapstructure:"ancestry"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	URL                   string `mapstructure:"url"`
	MaxConns              int32  `mapstructure:"max_conns"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
}

// WorkerConfig governs the worker pool.
type WorkerConfig struct {
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	MaxConcurrent       int    `mapstructure:"max_concurrent"`
	SoftCapMinutes      int    `mapstructure:"soft_cap_minutes"`
	StatusTopic         string `mapstructure:"status_topic"`
}

// QueueConfig governs queue defaults and stale-claim recovery.
type QueueConfig struct {
	MaxRetries          int      `mapstructure:"max_retries"`
	ClaimTimeoutMinutes int      `mapstructure:"claim_timeout_minutes"`
	// BlockedHosts are refused at enqueue; "*.example.org" blocks subdomains.
	BlockedHosts        []string `mapstructure:"blocked_hosts"`
}

// LoginConfig describes how a category's interactive login looks.
type LoginConfig struct {
	URL string `mapstructure:"url"`
	// Patterns are URL substrings that identify login pages.
	Patterns []string `mapstructure:"patterns"`
}

// FetchConfig configures both fetch paths and the per-host politeness delay.
type FetchConfig struct {
	DelayPerHostMs      int                    `mapstructure:"delay_per_host_ms"`
	TimeoutSeconds      int                    `mapstructure:"timeout_seconds"`
	MaxBytes            int64                  `mapstructure:"max_bytes"`
	MaxRedirects        int                    `mapstructure:"max_redirects"`
	UserAgent           string                 `mapstructure:"user_agent"`
	HeadlessMaxParallel int                    `mapstructure:"headless_max_parallel"`
	InteractiveLogin    bool                   `mapstructure:"interactive_login"`
	LoginTimeoutSeconds int                    `mapstructure:"login_timeout_seconds"`
	Logins              map[string]LoginConfig `mapstructure:"logins"`
}

// CookieConfig selects the cookie jar backend.
type CookieConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// OCRConfig configures the primary service and the local engine.
type OCRConfig struct {
	PrimaryKey            string  `mapstructure:"primary_key"`
	PrimaryEndpoint       string  `mapstructure:"primary_endpoint"`
	PrimaryTimeoutSeconds int     `mapstructure:"primary_timeout_seconds"`
	PrimaryConfidenceMin  float64 `mapstructure:"primary_confidence_min"`
	TesseractPath         string  `mapstructure:"tesseract_path"`
	PdftoppmPath          string  `mapstructure:"pdftoppm_path"`
	Language              string  `mapstructure:"language"`
}

// StorageConfig sets the archive object store.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	// Key is a credentials file path; Secret is inline credentials JSON.
	Key      string `mapstructure:"key"`
	Secret   string `mapstructure:"secret"`
	LocalDir string `mapstructure:"local_dir"`
}

// WatchdogConfig schedules archive verification.
type WatchdogConfig struct {
	Schedule        string `mapstructure:"schedule"`
	StaleAfterHours int    `mapstructure:"stale_after_hours"`
	Limit           int    `mapstructure:"limit"`
}

// MetricsConfig controls the ops HTTP listener; port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// PubSubConfig holds the optional status topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AncestryConfig configures the pedigree climber.
type AncestryConfig struct {
	CheckpointPath    string `mapstructure:"checkpoint_path"`
	PersonURLTemplate string `mapstructure:"person_url_template"`
	MaxGenerations    int    `mapstructure:"max_generations"`
	CutoffYear        int    `mapstructure:"cutoff_year"`
	CheckpointEvery   int    `mapstructure:"checkpoint_every"`
}

// envBindings are the only environment variables the scraper reads.
var envBindings = map[string]string{
	"db.url":                       "DB_URL",
	"worker.poll_interval_seconds": "POLL_INTERVAL",
	"worker.max_concurrent":        "MAX_CONCURRENT",
	"fetch.delay_per_host_ms":      "DELAY_PER_HOST_MS",
	"ocr.primary_key":              "OCR_PRIMARY_KEY",
	"storage.bucket":               "STORAGE_BUCKET",
	"storage.region":               "STORAGE_REGION",
	"storage.key":                  "STORAGE_KEY",
	"storage.secret":               "STORAGE_SECRET",
	"fetch.interactive_login":      "INTERACTIVE_LOGIN",
	"queue.claim_timeout_minutes":  "CLAIM_TIMEOUT_MIN",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.connect_timeout_seconds", 10)
	v.SetDefault("worker.poll_interval_seconds", 30)
	v.SetDefault("worker.max_concurrent", 1)
	v.SetDefault("worker.soft_cap_minutes", 10)
	v.SetDefault("worker.status_topic", "scraper-status")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.claim_timeout_minutes", 60)
	v.SetDefault("fetch.delay_per_host_ms", 1500)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_bytes", int64(100*1024*1024))
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("fetch.headless_max_parallel", 2)
	v.SetDefault("fetch.interactive_login", false)
	v.SetDefault("fetch.login_timeout_seconds", 300)
	v.SetDefault("cookies.backend", "file")
	v.SetDefault("cookies.dir", "data/cookies")
	v.SetDefault("cookies.sqlite_path", "data/cookies.db")
	v.SetDefault("ocr.primary_endpoint", "https://vision.googleapis.com/")
	v.SetDefault("ocr.primary_timeout_seconds", 60)
	v.SetDefault("ocr.primary_confidence_min", 0.80)
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.pdftoppm_path", "pdftoppm")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("watchdog.schedule", "0 * * * *")
	v.SetDefault("watchdog.stale_after_hours", 24)
	v.SetDefault("watchdog.limit", 100)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("telemetry.service_name", "scraper")
	v.SetDefault("logging.development", false)
	v.SetDefault("ancestry.checkpoint_path", "data/ancestry.db")
	v.SetDefault("ancestry.person_url_template",
		"https://www.familysearch.org/service/tree/tree-data/r9/portrait-pedigree/%s?numGenerations=4")
	v.SetDefault("ancestry.max_generations", 8)
	v.SetDefault("ancestry.cutoff_year", 1700)
	v.SetDefault("ancestry.checkpoint_every", 25)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required (DB_URL)")
	}
	if c.Worker.MaxConcurrent <= 0 {
		return fmt.Errorf("worker.max_concurrent must be > 0")
	}
	if c.Worker.PollIntervalSeconds <= 0 {
		return fmt.Errorf("worker.poll_interval_seconds must be > 0")
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be >= 0")
	}
	if c.Queue.ClaimTimeoutMinutes <= 0 {
		return fmt.Errorf("queue.claim_timeout_minutes must be > 0")
	}
	if c.Fetch.DelayPerHostMs < 0 {
		return fmt.Errorf("fetch.delay_per_host_ms must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be > 0")
	}
	if c.OCR.PrimaryConfidenceMin < 0 || c.OCR.PrimaryConfidenceMin > 1 {
		return fmt.Errorf("ocr.primary_confidence_min must be within [0,1]")
	}
	switch c.Cookies.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("cookies.backend must be file or sqlite, got %q", c.Cookies.Backend)
	}
	if c.Watchdog.Limit <= 0 {
		return fmt.Errorf("watchdog.limit must be > 0")
	}
	return nil
}

// PollInterval is the sleep between empty queue polls.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// ClaimTimeout is the age after which a processing entry is reclaimed.
func (c Config) ClaimTimeout() time.Duration {
	return time.Duration(c.Queue.ClaimTimeoutMinutes) * time.Minute
}

// HostDelay is the minimum gap between requests to one host.
func (c Config) HostDelay() time.Duration {
	return time.Duration(c.Fetch.DelayPerHostMs) * time.Millisecond
}

// FetchTimeout is the per-request fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// LoginTimeout bounds how long an interactive login may take.
func (c Config) LoginTimeout() time.Duration {
	return time.Duration(c.Fetch.LoginTimeoutSeconds) * time.Second
}

// StaleAfter is the age at which an archived URL is due for verification.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.Watchdog.StaleAfterHours) * time.Hour
}
