package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

//go:embed voters.yaml
var votersYAML []byte

type Config struct {
	OpenRouter OpenRouterConfig
	Gemini     GeminiConfig
	FaceAPI    FaceAPIConfig
	Voting     VotingConfig
	Database   DatabaseConfig
	Audit      AuditConfig
	Roster     Roster
}

type OpenRouterConfig struct {
	BaseURL       string // defaults to https://openrouter.ai/api/v1
	QwenAPIKey    string
	ChatGPTAPIKey string
}

type GeminiConfig struct {
	APIKey string
}

type FaceAPIConfig struct {
	URL       string  // face detection/embedding service, defaults to http://localhost:8000
	Threshold float64 // same person if cosine distance below this (default 0.4)
}

type VotingConfig struct {
	MaxAttempts       int           // attempts per voter call including the first (default 3)
	RequestTimeout    time.Duration // per-attempt timeout (default 30s)
	RateDelay         time.Duration // minimum gap between attempts of one voter (default 1s)
	EarlyStopFraction float64       // weight fraction required before early stop (default 0.6)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, empty disables persistence
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type AuditConfig struct {
	CSVPath string // comparison audit log, empty disables CSV logging
}

// Roster is the configured voter set. It is embedded at build time and
// read-only at runtime; the pipeline never discovers voters dynamically.
type Roster struct {
	Pair   PairConfig    `yaml:"pair"`
	Voters []VoterConfig `yaml:"voters"`
}

// PairConfig names the adjustable voter pair whose weights split
// conditionally, and which member is favored on disagreement.
type PairConfig struct {
	First   string `yaml:"first"`
	Second  string `yaml:"second"`
	Favored string `yaml:"favored"`
}

type VoterConfig struct {
	ID        string             `yaml:"id"`
	Backend   string             `yaml:"backend"` // openrouter, gemini or facenet
	Model     string             `yaml:"model,omitempty"`
	Fallbacks []string           `yaml:"fallbacks,omitempty"`
	Stages    map[string]float64 `yaml:"stages"`
}

// StageWeights converts the YAML stage map to typed stages.
func (v VoterConfig) StageWeights() map[compare.Stage]float64 {
	weights := make(map[compare.Stage]float64, len(v.Stages))
	for name, w := range v.Stages {
		weights[compare.Stage(name)] = w
	}
	return weights
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a positive duration.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var roster Roster
	if err := yaml.Unmarshal(votersYAML, &roster); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded voters.yaml: " + err.Error())
	}

	return &Config{
		OpenRouter: OpenRouterConfig{
			BaseURL:       envString("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
			QwenAPIKey:    os.Getenv("QWEN_API_KEY"),
			ChatGPTAPIKey: os.Getenv("CHATGPT_API_KEY"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		FaceAPI: FaceAPIConfig{
			URL:       envString("FACE_API_URL", "http://localhost:8000"),
			Threshold: envFloat("FACE_MATCH_THRESHOLD", 0.4),
		},
		Voting: VotingConfig{
			MaxAttempts:       envInt("VOTER_MAX_ATTEMPTS", 3),
			RequestTimeout:    envDuration("VOTER_TIMEOUT", 30*time.Second),
			RateDelay:         envDuration("VOTER_RATE_DELAY", time.Second),
			EarlyStopFraction: envFloat("EARLY_STOP_FRACTION", 0.6),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Audit: AuditConfig{
			CSVPath: os.Getenv("AUDIT_CSV_PATH"),
		},
		Roster: roster,
	}
}
