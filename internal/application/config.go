// Package application wires the scoring domain to REDCap and exposes the
// dashboard, marking sheet, review queue and webhook use cases.
package application

import (
	"strings"
	"time"

	"github.com/aphrc/proposal-review/internal/domain"
)

// Config is the complete service configuration loaded from YAML.
type Config struct {
	// Server controls the HTTP listener.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Log selects the logrus level and formatter.
	Log LogConfig `yaml:"log"`
	// Redcap describes the project API and the resilience policy around it.
	Redcap RedcapConfig `yaml:"redcap" validate:"required"`
	// Scoring picks the marking sheet layout and candidate matcher.
	Scoring ScoringConfig `yaml:"scoring"`
	// Mirror selects where webhook records are copied to.
	Mirror MirrorConfig `yaml:"mirror"`
	// Export controls the spreadsheet download.
	Export ExportConfig `yaml:"export"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address" validate:"required"`
	AllowedOrigins  []string      `yaml:"allowed_origins" validate:"dive,required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// RedcapConfig configures the REDCap client.
type RedcapConfig struct {
	URL     string        `yaml:"url" validate:"required,httpurl"`
	Token   string        `yaml:"token" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Instruments    InstrumentConfig     `yaml:"instruments"`
}

// RetryConfig is the exponential backoff policy for transient failures.
// MaxRetries of zero disables retries.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" validate:"min=0,max=10"`
	BaseDelay  time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay   time.Duration `yaml:"max_delay" validate:"min=0"`
}

// RateLimitConfig bounds the request rate. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// CircuitBreakerConfig opens the circuit after MaxFailures consecutive
// failures. Zero disables the breaker.
type CircuitBreakerConfig struct {
	MaxFailures int           `yaml:"max_failures" validate:"min=0"`
	Cooldown    time.Duration `yaml:"cooldown" validate:"min=0"`
}

// InstrumentConfig names the REDCap instruments the service reads.
type InstrumentConfig struct {
	MarkingSheet    string `yaml:"marking_sheet" validate:"required"`
	ReviewerDetails string `yaml:"reviewer_details" validate:"required"`
}

// ScoringConfig selects the scoring profile and matcher.
type ScoringConfig struct {
	Schema              domain.Schema      `yaml:"schema" validate:"schema"`
	Matcher             domain.MatcherKind `yaml:"matcher" validate:"matcher"`
	SimilarityThreshold float64            `yaml:"similarity_threshold" validate:"min=0,max=1"`
}

// MirrorConfig selects the mirror store.
type MirrorConfig struct {
	Driver    string         `yaml:"driver" validate:"oneof=memory postgres"`
	Postgres  PostgresConfig `yaml:"postgres"`
	ListLimit int            `yaml:"list_limit" validate:"min=1,max=1000"`
}

// PostgresConfig holds go-pg connection options.
type PostgresConfig struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ExportConfig controls the spreadsheet export.
type ExportConfig struct {
	FilePrefix string `yaml:"file_prefix" validate:"required,max=100"`
	SheetName  string `yaml:"sheet_name" validate:"required,max=31"`
}

// Defaults used when the YAML leaves a field empty.
const (
	DefaultListenAddress   = ":8080"
	DefaultMarkingSheet    = "marking_sheet"
	DefaultReviewerDetails = "reviewer_details"
	DefaultExportPrefix    = "Fellowship_Reviews"
	DefaultSheetName       = "Reviews"
	DefaultMirrorLimit     = 50
)

// DefaultConfig returns a config with every default applied. The REDCap
// URL and token have no default.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values in place.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.Server.ListenAddress, DefaultListenAddress)
	setDuration(&cfg.Server.ReadTimeout, 15*time.Second)
	setDuration(&cfg.Server.WriteTimeout, 60*time.Second)
	setDuration(&cfg.Server.ShutdownTimeout, 10*time.Second)

	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "text")

	setDuration(&cfg.Redcap.Timeout, 60*time.Second)
	setDuration(&cfg.Redcap.Retry.BaseDelay, 500*time.Millisecond)
	setDuration(&cfg.Redcap.Retry.MaxDelay, 10*time.Second)
	setDuration(&cfg.Redcap.CircuitBreaker.Cooldown, 30*time.Second)
	setDefault(&cfg.Redcap.Instruments.MarkingSheet, DefaultMarkingSheet)
	setDefault(&cfg.Redcap.Instruments.ReviewerDetails, DefaultReviewerDetails)

	if cfg.Scoring.Schema == "" {
		cfg.Scoring.Schema = domain.SchemaLegacy
	}
	if cfg.Scoring.Matcher == "" {
		cfg.Scoring.Matcher = domain.MatcherGreedy
	}

	setDefault(&cfg.Mirror.Driver, "memory")
	if cfg.Mirror.ListLimit == 0 {
		cfg.Mirror.ListLimit = DefaultMirrorLimit
	}

	setDefault(&cfg.Export.FilePrefix, DefaultExportPrefix)
	setDefault(&cfg.Export.SheetName, DefaultSheetName)
}

// applyEnv overrides config values from the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("LISTEN_ADDRESS"); ok && v != "" {
		cfg.Server.ListenAddress = v
	}
	if v, ok := lookup("ORIGIN_ALLOWED"); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup("REDCAP_URL"); ok && v != "" {
		cfg.Redcap.URL = v
	}
	if v, ok := lookup("REDCAP_TOKEN"); ok && v != "" {
		cfg.Redcap.Token = v
	}
	if v, ok := lookup("MIRROR_DB_ADDR"); ok && v != "" {
		cfg.Mirror.Postgres.Addr = v
	}
	if v, ok := lookup("MIRROR_DB_USER"); ok && v != "" {
		cfg.Mirror.Postgres.User = v
	}
	if v, ok := lookup("MIRROR_DB_PASSWORD"); ok && v != "" {
		cfg.Mirror.Postgres.Password = v
	}
	if v, ok := lookup("MIRROR_DB_NAME"); ok && v != "" {
		cfg.Mirror.Postgres.Database = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDuration(field *time.Duration, value time.Duration) {
	if *field == 0 {
		*field = value
	}
}
