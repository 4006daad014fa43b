package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "LICADMIN"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Authority AuthorityConfig `yaml:"authority" envconfig:"AUTHORITY"`
	Mail      MailConfig      `yaml:"mail" envconfig:"MAIL"`
	Batch     BatchConfig     `yaml:"batch" envconfig:"BATCH"`
	Workers   WorkersConfig   `yaml:"workers" envconfig:"WORKERS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains the local admin HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" envconfig:"HOST"`
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AdminToken      string          `yaml:"admin_token" envconfig:"ADMIN_TOKEN"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration for the admin API
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// AuthorityConfig describes the remote license authority.
type AuthorityConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	APIKey    string        `yaml:"api_key" envconfig:"API_KEY"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// MailConfig selects and configures the notification transport.
type MailConfig struct {
	Provider           string `yaml:"provider" envconfig:"PROVIDER"` // gmail, smtp or none
	Sender             string `yaml:"sender" envconfig:"SENDER"`
	SenderName         string `yaml:"sender_name" envconfig:"SENDER_NAME"`
	SMTPHost           string `yaml:"smtp_host" envconfig:"SMTP_HOST"`
	SMTPPort           int    `yaml:"smtp_port" envconfig:"SMTP_PORT"`
	SMTPUsername       string `yaml:"smtp_username" envconfig:"SMTP_USERNAME"`
	SMTPPassword       string `yaml:"smtp_password" envconfig:"SMTP_PASSWORD"`
	GmailTokenFile     string `yaml:"gmail_token_file" envconfig:"GMAIL_TOKEN_FILE"`
	GoogleClientID     string `yaml:"google_client_id" envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"google_client_secret" envconfig:"GOOGLE_CLIENT_SECRET"`
}

// BatchConfig tunes batch issuance.
type BatchConfig struct {
	// SendInterval paces consecutive recipients; zero disables pacing.
	SendInterval     time.Duration `yaml:"send_interval" envconfig:"SEND_INTERVAL"`
	Burst            int           `yaml:"burst" envconfig:"BURST"`
	DefaultMaxIPs    int           `yaml:"default_max_ips" envconfig:"DEFAULT_MAX_IPS"`
	DefaultSubject   string        `yaml:"default_subject" envconfig:"DEFAULT_SUBJECT"`
	BodyTemplateFile string        `yaml:"body_template_file" envconfig:"BODY_TEMPLATE_FILE"`
}

// WorkersConfig sizes the unit-of-work pool.
type WorkersConfig struct {
	Count     int `yaml:"count" envconfig:"COUNT"`
	QueueSize int `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"` // console, file or both
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR"`
	HistoryFile string `yaml:"history_file" envconfig:"HISTORY_FILE"`
}

// TelemetryConfig controls OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // stdout or none
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // prometheus or none
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8088,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Authority: AuthorityConfig{
			BaseURL:   "http://localhost:3000",
			Timeout:   10 * time.Second,
			UserAgent: "licenseadmin/" + AppVersion,
		},
		Mail: MailConfig{
			Provider:       "none",
			SMTPPort:       587,
			GmailTokenFile: "token.json",
		},
		Batch: BatchConfig{
			Burst:          1,
			DefaultMaxIPs:  1,
			DefaultSubject: "Your ebook license",
		},
		Workers: WorkersConfig{
			Count:     4,
			QueueSize: 8,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/licenseadmin.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			HistoryFile: "license_history.json",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// LICADMIN_* environment variables, in increasing order of precedence.
// An empty path falls back to LICADMIN_CONFIG and then the well-known
// locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep the file/default value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file found in common locations
func findConfigFile() string {
	locations := []string{
		"licenseadmin.yaml",
		"configs/licenseadmin.yaml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "licenseadmin", "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Authority.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid authority base url: %q", c.Authority.BaseURL)
	}
	c.Authority.BaseURL = strings.TrimRight(c.Authority.BaseURL, "/")

	if c.Authority.Timeout <= 0 {
		return fmt.Errorf("authority timeout must be positive")
	}

	switch c.Mail.Provider {
	case "none", "":
		c.Mail.Provider = "none"
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("mail.smtp_host is required for the smtp provider")
		}
		if c.Mail.Sender == "" {
			c.Mail.Sender = c.Mail.SMTPUsername
		}
	case "gmail":
		if c.Mail.GmailTokenFile == "" {
			return fmt.Errorf("mail.gmail_token_file is required for the gmail provider")
		}
	default:
		return fmt.Errorf("unsupported mail provider: %s", c.Mail.Provider)
	}

	if c.Batch.DefaultMaxIPs < 1 {
		return fmt.Errorf("batch.default_max_ips must be at least 1")
	}
	if c.Batch.SendInterval < 0 {
		return fmt.Errorf("batch.send_interval cannot be negative")
	}
	if c.Batch.Burst < 1 {
		c.Batch.Burst = 1
	}

	if c.Workers.Count <= 0 {
		c.Workers.Count = 4
	}
	if c.Workers.QueueSize <= 0 {
		c.Workers.QueueSize = c.Workers.Count * 2
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/licenseadmin.log"
	}

	return nil
}

// HistoryPath returns the resolved issuance history file path
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.Paths.HistoryFile) {
		return c.Paths.HistoryFile
	}
	return filepath.Join(c.Paths.DataDir, c.Paths.HistoryFile)
}

// ListenAddr returns the admin server listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
