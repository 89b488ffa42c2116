package vision

import (
	"context"
	"fmt"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/config"
)

// NewBackend builds the backend for one configured voter. The face
// detector is shared with the variant producer so the local voter and
// preprocessing use the same service.
func NewBackend(ctx context.Context, cfg *config.Config, voter config.VoterConfig, faces FaceDetector) (Backend, error) {
	switch voter.Backend {
	case "openrouter":
		key, err := openRouterKey(cfg, voter.ID)
		if err != nil {
			return nil, err
		}
		return NewOpenRouterBackend(cfg.OpenRouter.BaseURL, key, voter.ID, voter.Model, voter.Fallbacks), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("voter %s: GEMINI_API_KEY not set", voter.ID)
		}
		return NewGeminiBackend(ctx, cfg.Gemini.APIKey, voter.ID, voter.Model, voter.Fallbacks)

	case "facenet":
		return NewFaceNetBackend(faces, voter.ID, cfg.FaceAPI.Threshold), nil

	default:
		return nil, fmt.Errorf("voter %s: unknown backend %q", voter.ID, voter.Backend)
	}
}

func openRouterKey(cfg *config.Config, voterID string) (string, error) {
	switch voterID {
	case "qwen":
		if cfg.OpenRouter.QwenAPIKey == "" {
			return "", fmt.Errorf("voter qwen: QWEN_API_KEY not set")
		}
		return cfg.OpenRouter.QwenAPIKey, nil
	case "chatgpt":
		if cfg.OpenRouter.ChatGPTAPIKey == "" {
			return "", fmt.Errorf("voter chatgpt: CHATGPT_API_KEY not set")
		}
		return cfg.OpenRouter.ChatGPTAPIKey, nil
	default:
		return "", fmt.Errorf("voter %s: no OpenRouter API key configured", voterID)
	}
}
