package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearAmbientEnv blanks the well-known override variables so tests see only
// what they set themselves.
func clearAmbientEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "SERPER_API_KEY", "BRAVE_SEARCH_KEY",
		"YOUTUBE_API_KEY", "BILIBILI_COOKIE",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD",
		"DATABASE_URL", "RADAR_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearAmbientEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("explicit missing file should error")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Budget.MaxItems != 50 || cfg.Budget.MaxActions != 40 {
		t.Fatalf("budget defaults wrong: %+v", cfg.Budget)
	}
	if cfg.Budget.MaxRetriesPerAction != 2 || cfg.Budget.TopN != 10 {
		t.Fatalf("budget defaults wrong: %+v", cfg.Budget)
	}
	if cfg.General.ToolTimeout.Seconds() != 60 {
		t.Fatalf("tool timeout default: %v", cfg.General.ToolTimeout)
	}
	if cfg.LLM.Routing.Planning == "" || cfg.LLM.Routing.Fallback == "" {
		t.Fatalf("routing defaults empty: %+v", cfg.LLM.Routing)
	}
	if cfg.Tools.WebSearch.Provider != "serper" {
		t.Fatalf("web search provider default: %q", cfg.Tools.WebSearch.Provider)
	}
	if cfg.Server.Listen != ":10010" {
		t.Fatalf("listen default: %q", cfg.Server.Listen)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearAmbientEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	data := `
budget:
  max_items: 12
  max_actions: 8
  max_retries_per_action: 1
tools:
  web_search:
    provider: brave
server:
  schedule: "@hourly"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Budget.MaxItems != 12 || cfg.Budget.MaxActions != 8 {
		t.Fatalf("file values not applied: %+v", cfg.Budget)
	}
	if cfg.Tools.WebSearch.Provider != "brave" {
		t.Fatalf("provider = %q", cfg.Tools.WebSearch.Provider)
	}
	if cfg.Server.Schedule != "@hourly" {
		t.Fatalf("schedule = %q", cfg.Server.Schedule)
	}
	// Untouched sections keep their defaults
	if cfg.Budget.ReferenceWindowDays != 30 {
		t.Fatalf("reference window default lost: %d", cfg.Budget.ReferenceWindowDays)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearAmbientEnv(t)
	t.Setenv("YOUTUBE_API_KEY", "yt-key-from-env")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("RADAR_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tools.YouTube.APIKey != "yt-key-from-env" {
		t.Fatalf("youtube key not overridden: %q", cfg.Tools.YouTube.APIKey)
	}
	if cfg.Storage.Postgres.URL != "postgres://env/db" {
		t.Fatalf("postgres url not overridden: %q", cfg.Storage.Postgres.URL)
	}
	if cfg.Server.JWTSecret != "env-secret" {
		t.Fatalf("jwt secret not overridden")
	}
}

func TestValidateRejectsBadBudget(t *testing.T) {
	clearAmbientEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	data := `
budget:
  max_actions: 0
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("zero max_actions must fail validation")
	}
}

func TestValidateRejectsUnknownRoutingModel(t *testing.T) {
	clearAmbientEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	data := `
llm:
  providers:
    openai:
      type: openai-compatible
      models:
        gpt-5:
          name: gpt-5
  routing:
    planning: does-not-exist
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("unknown routing model must fail validation")
	}
}
