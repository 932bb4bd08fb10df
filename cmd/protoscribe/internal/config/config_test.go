package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
listen: ":9090"
openai:
  api_key: key-from-file
  use_system_role: true
models:
  document:
    provider: gemini
    name: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("Listen = %q", cfg.Listen)
	}
	if cfg.OpenAI.APIKey != "key-from-file" || !cfg.OpenAI.UseSystemRole {
		t.Fatalf("OpenAI = %+v", cfg.OpenAI)
	}
	if cfg.Models.Document.Provider != "gemini" || cfg.Models.Document.Name != "gemini-2.0-flash" {
		t.Fatalf("Models.Document = %+v", cfg.Models.Document)
	}
	// Unset roles fall back to defaults.
	if cfg.Models.Chat.Provider != "openai" || cfg.Models.Chat.Name == "" {
		t.Fatalf("Models.Chat = %+v", cfg.Models.Chat)
	}
	if cfg.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("DataDir = %q", cfg.DataDir)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "key-from-env")
	t.Setenv("GEMINI_API_KEY", "gem-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \":8081\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.APIKey != "key-from-env" {
		t.Fatalf("OpenAI.APIKey = %q", cfg.OpenAI.APIKey)
	}
	if cfg.Gemini.APIKey != "gem-from-env" {
		t.Fatalf("Gemini.APIKey = %q", cfg.Gemini.APIKey)
	}
}

func TestConfigFileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "key-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "openai:\n  api_key: key-from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.APIKey != "key-from-file" {
		t.Fatalf("OpenAI.APIKey = %q", cfg.OpenAI.APIKey)
	}
}
