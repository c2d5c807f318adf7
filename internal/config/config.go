package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey     = "TONIC_TEXTUAL_API_KEY"
	EnvBaseURL    = "TONIC_TEXTUAL_BASE_URL"
	EnvLogLevel   = "TEXTUAL_LOG_LEVEL"
	EnvRandomSeed = "TEXTUAL_RANDOM_SEED"
)

// DefaultMaxRetries applies when max_retries is not set anywhere.
const DefaultMaxRetries = 3

// DefaultBaseURL is the hosted redaction service.
const DefaultBaseURL = "https://textual.tonic.ai"

// Config holds application configuration.
type Config struct {
	// BaseURL is the redaction service root. Ignored in repo config.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey authenticates against the service. Prefer TONIC_TEXTUAL_API_KEY.
	// Ignored in repo config.
	APIKey string `json:"api_key,omitempty"`

	// InsecureSkipVerify disables TLS certificate checks for self-hosted
	// deployments with private certificates.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`

	// TimeoutSeconds bounds a single HTTP attempt.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// MaxRetries is the number of retries after a failed attempt on
	// rate limiting, server errors or network failures. An explicit 0
	// turns retries off; nil means DefaultMaxRetries.
	MaxRetries *int `json:"max_retries,omitempty"`

	// RequestsPerSecond limits outgoing calls. 0 means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// GeneratorDefault applies to entity types not named in GeneratorConfig.
	GeneratorDefault string `json:"generator_default,omitempty"`

	// GeneratorConfig maps entity types to Redaction, Synthesis or Off.
	GeneratorConfig map[string]string `json:"generator_config,omitempty"`

	// CustomEntities are custom entity types to detect in addition to the
	// built-in ones.
	CustomEntities []string `json:"custom_entities,omitempty"`

	// RandomSeed makes synthesized values reproducible when set.
	RandomSeed *int `json:"random_seed,omitempty"`

	// NewSpanPolicy is "redacted" (default) or "anchored".
	NewSpanPolicy string `json:"new_span_policy,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"` // console or json
	LogFile   string `json:"log_file,omitempty"`

	// AllowedPaths is an allowlist of directories for file input and output.
	// Paths outside ~/.textual/files require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for file input and output.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisableJournal stops recording runs in the local database.
	DisableJournal bool `json:"disable_journal,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types to disable entirely.
	// Known types: "text", "csv", "conversation", "markdown", "transcript", "history".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		TimeoutSeconds:   60,
		MaxRetries:       intPtr(DefaultMaxRetries),
		GeneratorDefault: string(redaction.Redaction),
		NewSpanPolicy:    string(reconcile.PolicyRedacted),
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Timeout returns TimeoutSeconds as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Retries returns MaxRetries, or DefaultMaxRetries when unset.
func (c *Config) Retries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// Policy returns the parsed span policy.
func (c *Config) Policy() reconcile.NewSpanPolicy {
	p, err := reconcile.ParsePolicy(c.NewSpanPolicy)
	if err != nil {
		return reconcile.PolicyRedacted
	}
	return p
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be an http(s) URL", c.BaseURL)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	if c.Retries() < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if _, err := reconcile.ParsePolicy(c.NewSpanPolicy); err != nil {
		return err
	}
	if _, err := redaction.ParsePiiState(c.GeneratorDefault); err != nil {
		return fmt.Errorf("generator_default: %w", err)
	}
	for label, state := range c.GeneratorConfig {
		if _, err := redaction.ParsePiiState(state); err != nil {
			return fmt.Errorf("generator_config[%s]: %w", label, err)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be console or json", c.LogFormat)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.textual.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.textual) and repo (.textual) directories.
// Repo config is found by walking upward from startDir to find the nearest .textual/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// A repo config cannot redirect requests or supply credentials: its base_url
// and api_key are dropped.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}
	repo.BaseURL = ""
	repo.APIKey = ""

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .textual/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".textual", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are skipped and existing variables are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvRandomSeed)); v != "" {
		if seed, err := strconv.Atoi(v); err == nil {
			cfg.RandomSeed = &seed
		}
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated;
// maps are merged key by key.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.BaseURL = firstString(overlay.BaseURL, base.BaseURL)
	result.APIKey = firstString(overlay.APIKey, base.APIKey)
	result.GeneratorDefault = firstString(overlay.GeneratorDefault, base.GeneratorDefault)
	result.NewSpanPolicy = firstString(overlay.NewSpanPolicy, base.NewSpanPolicy)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstString(overlay.LogFormat, base.LogFormat)
	result.LogFile = firstString(overlay.LogFile, base.LogFile)

	result.TimeoutSeconds = firstInt(overlay.TimeoutSeconds, base.TimeoutSeconds)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.RequestsPerSecond = overlay.RequestsPerSecond
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = base.RequestsPerSecond
	}

	// Pointers: overlay wins when set, so an explicit 0 survives
	result.RandomSeed = firstSet(overlay.RandomSeed, base.RandomSeed)
	result.MaxRetries = firstSet(overlay.MaxRetries, base.MaxRetries)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.InsecureSkipVerify = base.InsecureSkipVerify || overlay.InsecureSkipVerify
	result.DisableJournal = base.DisableJournal || overlay.DisableJournal

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.CustomEntities = mergeStringSlice(base.CustomEntities, overlay.CustomEntities)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	// Maps: overlay keys win
	if len(base.GeneratorConfig)+len(overlay.GeneratorConfig) > 0 {
		result.GeneratorConfig = make(map[string]string, len(base.GeneratorConfig)+len(overlay.GeneratorConfig))
		for k, v := range base.GeneratorConfig {
			result.GeneratorConfig[k] = v
		}
		for k, v := range overlay.GeneratorConfig {
			result.GeneratorConfig[k] = v
		}
	}

	return result
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstSet(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func intPtr(n int) *int {
	return &n
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
