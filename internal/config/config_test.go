package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.BaseURL != def.BaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, def.BaseURL)
	}
	if cfg.TimeoutSeconds != 60 || cfg.Retries() != 3 {
		t.Errorf("TimeoutSeconds = %d, Retries() = %d", cfg.TimeoutSeconds, cfg.Retries())
	}
	if cfg.NewSpanPolicy != "redacted" {
		t.Errorf("NewSpanPolicy = %q, want redacted", cfg.NewSpanPolicy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{
		"base_url": "https://textual.example.com",
		"timeout_seconds": 5,
		"generator_default": "Synthesis",
		"generator_config": {"NAME_GIVEN": "Off"},
		"new_span_policy": "anchored",
		"random_seed": 7
	}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://textual.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout().Seconds() != 5 {
		t.Errorf("Timeout() = %v, want 5s", cfg.Timeout())
	}
	if cfg.GeneratorDefault != "Synthesis" || cfg.GeneratorConfig["NAME_GIVEN"] != "Off" {
		t.Errorf("generator settings = %q %v", cfg.GeneratorDefault, cfg.GeneratorConfig)
	}
	if cfg.Policy() != "anchored" {
		t.Errorf("Policy() = %q, want anchored", cfg.Policy())
	}
	if cfg.RandomSeed == nil || *cfg.RandomSeed != 7 {
		t.Errorf("RandomSeed = %v, want 7", cfg.RandomSeed)
	}
	if cfg.Retries() != 3 {
		t.Errorf("Retries() = %d, want default 3", cfg.Retries())
	}
}

func TestLoad_ZeroRetries(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"max_retries": 0}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retries() != 0 {
		t.Errorf("Retries() = %d, want 0", cfg.Retries())
	}

	// A repo overlay that does not mention max_retries keeps the global 0.
	merged := Merge(cfg, &Config{})
	if merged.Retries() != 0 {
		t.Errorf("merged Retries() = %d, want 0", merged.Retries())
	}
	if got := Merge(DefaultConfig(), &Config{MaxRetries: intPtr(0)}).Retries(); got != 0 {
		t.Errorf("overlay 0 over default: Retries() = %d, want 0", got)
	}
	if (&Config{}).Retries() != DefaultMaxRetries {
		t.Errorf("unset Retries() = %d, want %d", (&Config{}).Retries(), DefaultMaxRetries)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["history_purge", "csv_redact"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "history_purge" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "history_purge")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"timeout_seconds": 30, "disabled_tools": ["history_purge"], "generator_config": {"NAME_GIVEN": "Synthesis"}}`)
	writeConfig(t, filepath.Join(repoRoot, ".textual"), `{"timeout_seconds": 10, "disabled_tools": ["csv_redact"], "generator_config": {"LOCATION_CITY": "Off"}}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10 (repo override)", cfg.TimeoutSeconds)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.GeneratorConfig["NAME_GIVEN"] != "Synthesis" || cfg.GeneratorConfig["LOCATION_CITY"] != "Off" {
		t.Errorf("GeneratorConfig = %v, want both keys", cfg.GeneratorConfig)
	}
}

func TestLoadWithRepo_RepoCannotRedirect(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	writeConfig(t, globalDir, `{"api_key": "global-key"}`)
	writeConfig(t, filepath.Join(repoRoot, ".textual"), `{"base_url": "https://evil.example.com", "api_key": "repo-key"}`)

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.APIKey != "global-key" {
		t.Errorf("APIKey = %q, want global-key", cfg.APIKey)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, filepath.Join(tmpDir, ".textual"), `{"disabled_types": ["history"]}`)

	subdir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "history" {
		t.Errorf("DisabledTypes = %v, want [history]", cfg.DisabledTypes)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{TimeoutSeconds: 60, DBMaxOpenConns: 5, LogLevel: "info"}
	overlay := &Config{TimeoutSeconds: 5, LogLevel: "debug"}

	result := Merge(base, overlay)

	if result.TimeoutSeconds != 5 {
		t.Errorf("TimeoutSeconds = %d, want 5 (overlay)", result.TimeoutSeconds)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", result.LogLevel)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AllowUnsafePaths: true}, &Config{DisableJournal: true})

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
	if !result.DisableJournal {
		t.Error("DisableJournal should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{CustomEntities: []string{"PROJECT", " TICKET "}}
	overlay := &Config{CustomEntities: []string{"TICKET", "CODENAME"}}

	result := Merge(base, overlay)

	want := []string{"PROJECT", "TICKET", "CODENAME"}
	if len(result.CustomEntities) != len(want) {
		t.Fatalf("CustomEntities = %v, want %v", result.CustomEntities, want)
	}
	for i := range want {
		if result.CustomEntities[i] != want[i] {
			t.Errorf("CustomEntities[%d] = %q, want %q", i, result.CustomEntities[i], want[i])
		}
	}
}

func TestFindRepoConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ".textual")
	writeConfig(t, configDir, `{}`)
	configPath := filepath.Join(configDir, "config.json")

	deeper := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(deeper, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if found := FindRepoConfig(tmpDir); found != configPath {
		t.Errorf("FindRepoConfig(root) = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(deeper); found != configPath {
		t.Errorf("FindRepoConfig(deeper) = %q, want %q", found, configPath)
	}
	if found := FindRepoConfig(t.TempDir()); found != "" {
		t.Errorf("FindRepoConfig(empty) = %q, want empty string", found)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIKey:     " key-123 ",
		EnvBaseURL:    "https://self-hosted.example.com/",
		EnvLogLevel:   "DEBUG",
		EnvRandomSeed: "42",
	}
	cfg := DefaultConfig()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.APIKey != "key-123" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.BaseURL != "https://self-hosted.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.RandomSeed == nil || *cfg.RandomSeed != 42 {
		t.Errorf("RandomSeed = %v", cfg.RandomSeed)
	}
}

func TestApplyEnv_EmptyKeepsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "from-file"
	ApplyEnv(cfg, func(string) string { return "" })
	if cfg.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want from-file", cfg.APIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TEXTUAL_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("TEXTUAL_TEST_DOTENV", "")
	os.Unsetenv("TEXTUAL_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("TEXTUAL_TEST_DOTENV"); got != "from-file" {
		t.Errorf("TEXTUAL_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad url", func(c *Config) { c.BaseURL = "textual.tonic.ai" }},
		{"negative timeout", func(c *Config) { c.TimeoutSeconds = -1 }},
		{"negative retries", func(c *Config) { c.MaxRetries = intPtr(-1) }},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -2 }},
		{"bad policy", func(c *Config) { c.NewSpanPolicy = "original" }},
		{"bad default", func(c *Config) { c.GeneratorDefault = "Hide" }},
		{"bad generator config", func(c *Config) { c.GeneratorConfig = map[string]string{"NAME_GIVEN": "hide"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}
