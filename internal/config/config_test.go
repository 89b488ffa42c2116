package config

import (
	"testing"
	"time"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.OpenRouter.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected OpenRouter base URL: %s", cfg.OpenRouter.BaseURL)
	}
	if cfg.Voting.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", cfg.Voting.MaxAttempts)
	}
	if cfg.Voting.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Voting.RequestTimeout)
	}
	if cfg.Voting.EarlyStopFraction != 0.6 {
		t.Errorf("expected 0.6 early stop fraction, got %f", cfg.Voting.EarlyStopFraction)
	}
	if cfg.FaceAPI.Threshold != 0.4 {
		t.Errorf("expected 0.4 face threshold, got %f", cfg.FaceAPI.Threshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VOTER_MAX_ATTEMPTS", "5")
	t.Setenv("VOTER_TIMEOUT", "10s")
	t.Setenv("EARLY_STOP_FRACTION", "0.75")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	if cfg.Voting.MaxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", cfg.Voting.MaxAttempts)
	}
	if cfg.Voting.RequestTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.Voting.RequestTimeout)
	}
	if cfg.Voting.EarlyStopFraction != 0.75 {
		t.Errorf("expected 0.75 early stop fraction, got %f", cfg.Voting.EarlyStopFraction)
	}
	// Invalid value falls back to default.
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default 25 open conns, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestEmbeddedRoster(t *testing.T) {
	cfg := Load()

	if len(cfg.Roster.Voters) != 4 {
		t.Fatalf("expected 4 configured voters, got %d", len(cfg.Roster.Voters))
	}
	if cfg.Roster.Pair.First != "qwen" || cfg.Roster.Pair.Second != "gemini" {
		t.Errorf("unexpected adjustable pair: %+v", cfg.Roster.Pair)
	}
	if cfg.Roster.Pair.Favored != "qwen" {
		t.Errorf("expected qwen favored, got %s", cfg.Roster.Pair.Favored)
	}

	byID := make(map[string]VoterConfig)
	for _, v := range cfg.Roster.Voters {
		byID[v.ID] = v
	}

	chatgpt, ok := byID["chatgpt"]
	if !ok {
		t.Fatal("chatgpt voter missing from roster")
	}
	weights := chatgpt.StageWeights()
	if weights[compare.StageCropped] != 1.2 {
		t.Errorf("expected chatgpt cropped weight 1.2, got %f", weights[compare.StageCropped])
	}

	facenet, ok := byID["facenet"]
	if !ok {
		t.Fatal("facenet voter missing from roster")
	}
	if _, participates := facenet.StageWeights()[compare.StageAligned]; participates {
		t.Error("facenet should not participate in the aligned stage")
	}
}
