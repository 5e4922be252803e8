package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, e := range []string{EnvPrefix + "_LLM_OPENAI_KEY", "OPENAI_API_KEY", "SEC_USER_AGENT"} {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// LLM defaults
	if cfg.LLM.Primary != "openai" {
		t.Errorf("LLM.Primary: got %q, want %q", cfg.LLM.Primary, "openai")
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model: got %q, want %q", cfg.LLM.Model, "gpt-4o")
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("LLM.Temperature: got %f, want 0", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens: got %d, want 4096", cfg.LLM.MaxTokens)
	}
	if cfg.HasLLMKey() {
		t.Error("no key should be configured by default")
	}

	// EDGAR defaults
	if cfg.EDGAR.RateLimit != 10 {
		t.Errorf("EDGAR.RateLimit: got %f, want 10", cfg.EDGAR.RateLimit)
	}
	if cfg.EDGAR.LookbackMonths != 12 {
		t.Errorf("EDGAR.LookbackMonths: got %d, want 12", cfg.EDGAR.LookbackMonths)
	}
	if cfg.EDGAR.MaxForm4 != 50 || cfg.EDGAR.Max13G != 30 {
		t.Errorf("EDGAR caps: got form4=%d 13g=%d", cfg.EDGAR.MaxForm4, cfg.EDGAR.Max13G)
	}
	if cfg.EDGAR.ProxyBudget != 50000 {
		t.Errorf("EDGAR.ProxyBudget: got %d, want 50000", cfg.EDGAR.ProxyBudget)
	}
	if cfg.EDGAR.RiskTextLimit != 45000 {
		t.Errorf("EDGAR.RiskTextLimit: got %d, want 45000", cfg.EDGAR.RiskTextLimit)
	}
	if cfg.EDGAR.OfflineDir != "examples" {
		t.Errorf("EDGAR.OfflineDir: got %q", cfg.EDGAR.OfflineDir)
	}
	if cfg.EDGAR.UserAgent == "" {
		t.Error("EDGAR.UserAgent should have a default")
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8000 {
		t.Errorf("API.Port: got %d, want 8000", cfg.API.Port)
	}
	if len(cfg.API.CORSOrigins) != 2 {
		t.Errorf("API.CORSOrigins: got %v", cfg.API.CORSOrigins)
	}

	// Output / store defaults
	if cfg.Output.Dir != "pipeline_output" {
		t.Errorf("Output.Dir: got %q", cfg.Output.Dir)
	}
	if cfg.Store.InMemory {
		t.Error("Store.InMemory should default to false")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrefix+"_API_PORT", "9191")
	t.Setenv(EnvPrefix+"_EDGAR_LOOKBACK_MONTHS", "6")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("API.Port: got %d, want 9191", cfg.API.Port)
	}
	if cfg.EDGAR.LookbackMonths != 6 {
		t.Errorf("EDGAR.LookbackMonths: got %d, want 6", cfg.EDGAR.LookbackMonths)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearKeyEnv(t)
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
llm:
  model: "gpt-4o-mini"
  temperature: 0.3
  openai_key: "sk-file-key-1234567890"
edgar:
  user_agent: "Acme Research ops@acme.test"
  rate_limit: 5
  max_form4: 20
api:
  port: 9090
output:
  dir: "/tmp/dd"
store:
  in_memory: true
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("LLM.Temperature: got %f, want 0.3", cfg.LLM.Temperature)
	}
	if !cfg.HasLLMKey() {
		t.Error("key from file should be present")
	}
	if cfg.EDGAR.UserAgent != "Acme Research ops@acme.test" {
		t.Errorf("EDGAR.UserAgent: got %q", cfg.EDGAR.UserAgent)
	}
	if cfg.EDGAR.RateLimit != 5 {
		t.Errorf("EDGAR.RateLimit: got %f, want 5", cfg.EDGAR.RateLimit)
	}
	if cfg.EDGAR.MaxForm4 != 20 {
		t.Errorf("EDGAR.MaxForm4: got %d, want 20", cfg.EDGAR.MaxForm4)
	}
	if cfg.EDGAR.Max13G != 30 {
		t.Errorf("EDGAR.Max13G should keep its default, got %d", cfg.EDGAR.Max13G)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Output.Dir != "/tmp/dd" {
		t.Errorf("Output.Dir: got %q", cfg.Output.Dir)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory: want true")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── WriteDefault ──

func TestWriteDefaultRoundTrip(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.EDGAR.ProxyBudget != 50000 || cfg.API.Port != 8000 {
		t.Errorf("round-tripped defaults differ: %+v", cfg)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() should refuse to overwrite")
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrefix+"_LLM_OPENAI_KEY", "sk-test-openai-key-123456")
	t.Setenv("OPENAI_API_KEY", "sk-plain-ignored")
	t.Setenv("SEC_USER_AGENT", "Jane Analyst jane@example.com")

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.LLM.OpenAIKey != "sk-test-openai-key-123456" {
		t.Errorf("OpenAIKey: got %q", cfg.LLM.OpenAIKey)
	}
	if cfg.EDGAR.UserAgent != "Jane Analyst jane@example.com" {
		t.Errorf("UserAgent: got %q", cfg.EDGAR.UserAgent)
	}
}

func TestOverrideFromPlainOpenAIKey(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-plain-key-abcdefgh")

	cfg := &Config{}
	overrideFromEnv(cfg)
	if cfg.LLM.OpenAIKey != "sk-plain-key-abcdefgh" {
		t.Errorf("OpenAIKey: got %q", cfg.LLM.OpenAIKey)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearKeyEnv(t)

	cfg := &Config{
		LLM: LLMConfig{OpenAIKey: "from-config"},
	}
	overrideFromEnv(cfg)

	// Should retain the original value when env is not set
	if cfg.LLM.OpenAIKey != "from-config" {
		t.Errorf("OpenAIKey should stay as 'from-config' when env is unset, got %q", cfg.LLM.OpenAIKey)
	}
}

// ── maskKey ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"sk-abcdef1234567890xyz", "sk-...xyz"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysEmpty(t *testing.T) {
	clearKeyEnv(t)

	statuses := CheckAPIKeys(&Config{})
	if len(statuses) != 1 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 1", len(statuses))
	}
	if statuses[0].IsSet || statuses[0].Source != KeySourceNone {
		t.Errorf("unexpected status %+v", statuses[0])
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	clearKeyEnv(t)

	statuses := CheckAPIKeys(&Config{LLM: LLMConfig{OpenAIKey: "sk-test-very-long-key-value"}})
	s := statuses[0]
	if !s.IsSet {
		t.Error("OpenAI key should be set")
	}
	if s.Source != KeySourceConfig {
		t.Errorf("Source: got %q, want %q", s.Source, KeySourceConfig)
	}
	if s.Masked != "sk-...lue" {
		t.Errorf("Masked: got %q, want %q", s.Masked, "sk-...lue")
	}
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env-key-for-testing")

	s := CheckAPIKeys(&Config{LLM: LLMConfig{OpenAIKey: "sk-env-key-for-testing"}})[0]
	if s.Source != KeySourceEnv {
		t.Errorf("Source: got %q, want %q", s.Source, KeySourceEnv)
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	if homeDir() == "" {
		t.Error("homeDir() should not return empty string")
	}
}
