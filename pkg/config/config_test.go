package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func TestLoad_Defaults(t *testing.T) {
	writeTestConfig(t, `
env: "test"
llm:
  model: "gpt-4o-mini"
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("PORT")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default Port=8080, got %s", cfg.Port)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Pipeline.FactsTTL != 6*time.Hour {
		t.Errorf("expected default facts TTL 6h, got %v", cfg.Pipeline.FactsTTL)
	}
	if cfg.Pipeline.TranscriptTTL != 7*24*time.Hour {
		t.Errorf("expected default transcript TTL 168h, got %v", cfg.Pipeline.TranscriptTTL)
	}
	if cfg.Pipeline.MaxOutputRetries != 1 {
		t.Errorf("expected default max output retries 1, got %d", cfg.Pipeline.MaxOutputRetries)
	}
	if cfg.Pipeline.RecordRefused {
		t.Error("expected record_refused to default to false")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeTestConfig(t, `
port: "8080"
env: "test"
llm:
  model: "gpt-4o-mini"
pipeline:
  max_output_retries: 2
`)

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PIPELINE_FACTS_TTL", "2h")

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Pipeline.FactsTTL != 2*time.Hour {
		t.Errorf("expected facts TTL 2h (from env), got %v", cfg.Pipeline.FactsTTL)
	}
	if cfg.Pipeline.MaxOutputRetries != 2 {
		t.Errorf("expected max output retries 2 (from yaml), got %d", cfg.Pipeline.MaxOutputRetries)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	writeTestConfig(t, `
env: "test"
llm:
  model: "gpt-4o-mini"
`)
	os.Unsetenv("JWT_SECRET")

	if _, err := Load("v1"); err == nil {
		t.Fatal("expected Load() to fail without JWT_SECRET")
	}
}

func TestGuardrailLLM_FallsBackToGeneration(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
	}
	if got := cfg.GuardrailLLM(); got.Model != "gpt-4o-mini" {
		t.Errorf("expected guardrail to fall back to generation model, got %q", got.Model)
	}

	cfg.Guardrail = LLMConfig{Provider: "openai", Model: "gpt-4o"}
	if got := cfg.GuardrailLLM(); got.Model != "gpt-4o" {
		t.Errorf("expected dedicated guardrail model, got %q", got.Model)
	}
}
