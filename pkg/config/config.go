package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TABULIST_DB_PATH.
const EnvPrefix = "TABULIST_"

// Config holds the application configuration.
type Config struct {
	Wiki      WikiConfig      `yaml:"wiki" envPrefix:"WIKI_"`
	Sparql    SparqlConfig    `yaml:"sparql" envPrefix:"SPARQL_"`
	Wikidata  WikidataConfig  `yaml:"wikidata" envPrefix:"WIKIDATA_"`
	Request   RequestConfig   `yaml:"request" envPrefix:"REQUEST_"`
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Update    UpdateConfig    `yaml:"update" envPrefix:"UPDATE_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
}

// WikiConfig describes the wiki whose data pages are maintained.
type WikiConfig struct {
	Name            string `yaml:"name" env:"NAME"`                 // database name, e.g. commonswiki
	Server          string `yaml:"server" env:"SERVER"`             // host name; empty uses the known wiki table
	APIEndpoint     string `yaml:"api_endpoint" env:"API_ENDPOINT"` // full api.php URL; overrides server
	Template        string `yaml:"template" env:"TEMPLATE"`
	TalkNamespace   int    `yaml:"talk_namespace" env:"TALK_NAMESPACE"`
	TalkPrefix      string `yaml:"talk_prefix" env:"TALK_PREFIX"`
	DataPrefix      string `yaml:"data_prefix" env:"DATA_PREFIX"`
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
	EditSummary     string `yaml:"edit_summary" env:"EDIT_SUMMARY"`
	Maxlag          int    `yaml:"maxlag" env:"MAXLAG"`
}

// SparqlConfig holds query service settings.
type SparqlConfig struct {
	Endpoint string   `yaml:"endpoint" env:"ENDPOINT"`
	Timeout  Duration `yaml:"timeout" env:"TIMEOUT"`
}

// WikidataConfig holds term store settings.
type WikidataConfig struct {
	APIEndpoint string   `yaml:"api_endpoint" env:"API_ENDPOINT"`
	Languages   []string `yaml:"languages" env:"LANGUAGES" envSeparator:","`
	BatchSize   int      `yaml:"batch_size" env:"BATCH_SIZE"`
	// CacheTTL keeps looked-up terms for reuse across pages; 0 disables.
	CacheTTL Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries" env:"RETRIES"`
	Timeout   Duration      `yaml:"timeout" env:"TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"USER_AGENT"`
	Gap       Duration      `yaml:"gap" env:"GAP"`
	Backoff   BackoffConfig `yaml:"backoff" envPrefix:"BACKOFF_"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay" env:"BASE_DELAY"`
	MaxDelay  Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // sqlite or postgres
	Path   string `yaml:"path" env:"PATH"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server" envPrefix:"SERVER_"`
	Requests LogSettings `yaml:"requests" envPrefix:"REQUESTS_"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path" env:"PATH"`
	Level string `yaml:"level" env:"LEVEL"`
}

// UpdateConfig holds page update settings.
type UpdateConfig struct {
	Force        bool     `yaml:"force" env:"FORCE"`
	DryRun       bool     `yaml:"dry_run" env:"DRY_RUN"`
	Workers      int      `yaml:"workers" env:"WORKERS"`
	LeaseTimeout Duration `yaml:"lease_timeout" env:"LEASE_TIMEOUT"`
}

// SchedulerConfig holds settings for the periodic refresh in serve mode.
type SchedulerConfig struct {
	Interval Duration `yaml:"interval" env:"INTERVAL"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Wiki: WikiConfig{
			Name:            "commonswiki",
			Template:        "Wikidata_tabular",
			TalkNamespace:   487,
			TalkPrefix:      "Data_talk:",
			DataPrefix:      "Data:",
			CredentialsFile: "./configs/credentials",
			EditSummary:     "Wikidata list updated",
			Maxlag:          5,
		},
		Sparql: SparqlConfig{
			Endpoint: "https://query.wikidata.org/sparql",
			Timeout:  Duration(90 * time.Second),
		},
		Wikidata: WikidataConfig{
			APIEndpoint: "https://www.wikidata.org/w/api.php",
			Languages:   []string{"en"},
			BatchSize:   50,
			CacheTTL:    Duration(30 * time.Minute),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Gap:     Duration(100 * time.Millisecond),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "./data/tabulist.db",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Update: UpdateConfig{
			Workers:      1,
			LeaseTimeout: Duration(1 * time.Hour),
		},
		Scheduler: SchedulerConfig{
			Interval: Duration(1 * time.Hour),
		},
		Server: ServerConfig{
			Address: "localhost:8087",
		},
	}
}

// Load loads the configuration from the given path, then applies environment overrides.
// If the file does not exist, it creates it with default values.
// An existing file is merged over defaults but never written back (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would make every run fail.
func (c *Config) Validate() error {
	switch {
	case c.Wiki.Name == "":
		return &ConfigurationError{Field: "wiki.name", Reason: "must be set"}
	case c.Wiki.Template == "":
		return &ConfigurationError{Field: "wiki.template", Reason: "must be set"}
	case c.Wiki.TalkPrefix == "" || c.Wiki.DataPrefix == "":
		return &ConfigurationError{Field: "wiki.talk_prefix", Reason: "talk and data prefixes must be set"}
	case c.Sparql.Endpoint == "":
		return &ConfigurationError{Field: "sparql.endpoint", Reason: "must be set"}
	case c.Wikidata.BatchSize < 1 || c.Wikidata.BatchSize > 50:
		return &ConfigurationError{Field: "wikidata.batch_size", Reason: "must be between 1 and 50"}
	case c.Update.Workers < 1:
		return &ConfigurationError{Field: "update.workers", Reason: "must be at least 1"}
	case c.Update.LeaseTimeout <= 0:
		return &ConfigurationError{Field: "update.lease_timeout", Reason: "must be positive"}
	}
	switch c.DB.Driver {
	case "sqlite", "":
		if c.DB.Path == "" {
			return &ConfigurationError{Field: "db.path", Reason: "must be set for sqlite"}
		}
	case "postgres":
		if c.DB.DSN == "" {
			return &ConfigurationError{Field: "db.dsn", Reason: "must be set for postgres"}
		}
	default:
		return &ConfigurationError{Field: "db.driver", Reason: fmt.Sprintf("unsupported driver %q", c.DB.Driver)}
	}
	if _, err := c.WikiServer(); err != nil {
		return err
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Tabulist Configuration
# ----------------------
# Every key can be overridden from the environment, e.g. TABULIST_DB_PATH, TABULIST_WIKI_NAME.
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Inject comments for enum-like fields
	reDriver := regexp.MustCompile(`(?m)^(\s+)driver:`)
	data = reDriver.ReplaceAll(data, []byte("${1}# Options: sqlite, postgres\n${1}driver:"))

	reServer := regexp.MustCompile(`(?m)^(\s+)server: ""`)
	data = reServer.ReplaceAll(data, []byte("${1}# Empty: derived from name for known wikis\n${1}server: \"\""))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
