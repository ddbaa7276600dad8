package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANAMNESIS_DB", filepath.Join(t.TempDir(), "a.db"))
	t.Setenv("ANAMNESIS_LLM_PROVIDER", "mock")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if !cfg.AllowMessagesAfterFinish {
		t.Error("AllowMessagesAfterFinish should default to true")
	}
	if cfg.HistoryTurns != 10 {
		t.Errorf("HistoryTurns = %d", cfg.HistoryTurns)
	}
	if cfg.EvaluationLease != 5*time.Minute {
		t.Errorf("EvaluationLease = %s", cfg.EvaluationLease)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("LLM.Provider = %q", cfg.LLM.Provider)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANAMNESIS_ADDR", "127.0.0.1:9000")
	t.Setenv("ANAMNESIS_DB", "postgres://localhost/anamnesis")
	t.Setenv("ANAMNESIS_ALLOW_MESSAGES_AFTER_FINISH", "false")
	t.Setenv("ANAMNESIS_EVALUATION_LEASE", "3m")
	t.Setenv("ANAMNESIS_TOKEN_TTL", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DB != "postgres://localhost/anamnesis" {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.AllowMessagesAfterFinish {
		t.Error("AllowMessagesAfterFinish should be false")
	}
	if cfg.EvaluationLease != 3*time.Minute || cfg.TokenTTL != time.Hour {
		t.Errorf("durations = %s, %s", cfg.EvaluationLease, cfg.TokenTTL)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "ANAMNESIS_JWT_SECRET=from-file-secret-0123456789abcdef\nANAMNESIS_HISTORY_TURNS=4\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANAMNESIS_DB", filepath.Join(dir, "a.db"))
	t.Setenv("ANAMNESIS_HISTORY_TURNS", "6")
	// Registered so t.Setenv restores the variable the file sets.
	t.Setenv("ANAMNESIS_JWT_SECRET", "")
	os.Unsetenv("ANAMNESIS_JWT_SECRET")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "from-file-secret-0123456789abcdef" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.HistoryTurns != 6 {
		t.Errorf("HistoryTurns = %d, environment should win over the file", cfg.HistoryTurns)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Setenv("ANAMNESIS_DB", filepath.Join(t.TempDir(), "a.db"))
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ANAMNESIS_DB", filepath.Join(t.TempDir(), "a.db"))
	t.Setenv("ANAMNESIS_LLM_PROVIDER", "mock")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg.JWTSecret = "short"
	cfg.EvaluationTranscript = "everything"
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"JWT_SECRET", "EVALUATION_TRANSCRIPT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}

	cfg.JWTSecret = strings.Repeat("k", 32)
	cfg.EvaluationTranscript = "doctor-questions"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
