package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const imageMaxEdge = 1024

// OpenRouterBackend classifies image pairs through an OpenAI-compatible
// chat-completions endpoint. Both the Qwen-VL and GPT-4o voters run
// through OpenRouter with different model names.
type OpenRouterBackend struct {
	client    *openai.Client
	name      string
	model     string
	fallbacks []string
}

// NewOpenRouterBackend creates a backend for one model, with optional
// fallback models tried in order when the primary is unavailable.
func NewOpenRouterBackend(baseURL, apiKey, name, model string, fallbacks []string) *OpenRouterBackend {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenRouterBackend{
		client:    &client,
		name:      name,
		model:     model,
		fallbacks: fallbacks,
	}
}

func (b *OpenRouterBackend) Name() string {
	return b.name
}

// Classify sends both images and the comparison prompt in one chat
// completion and normalizes the YES/NO answer.
func (b *OpenRouterBackend) Classify(ctx context.Context, imageA, imageB []byte) (*Classification, error) {
	urlA, err := imageDataURL(imageA)
	if err != nil {
		return nil, Permanent(err)
	}
	urlB, err := imageDataURL(imageB)
	if err != nil {
		return nil, Permanent(err)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: urlA}),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: urlB}),
						openai.TextContentPart(comparisonPrompt),
					},
				},
			},
		},
	}

	models := append([]string{b.model}, b.fallbacks...)
	var lastErr error

	for _, model := range models {
		resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       model,
			Messages:    messages,
			MaxTokens:   openai.Int(50),
			Temperature: openai.Float(0),
		})
		if err != nil {
			classified := classifyAPIError(err)
			var perm *PermanentError
			if errors.As(classified, &perm) && isModelNotFound(err) {
				// Unknown model, try the next fallback.
				lastErr = classified
				continue
			}
			return nil, classified
		}

		if len(resp.Choices) == 0 {
			return nil, Transient(errors.New("no choices in response"))
		}

		text := resp.Choices[0].Message.Content
		verdict, err := parseVerdict(text)
		if err != nil {
			return nil, err
		}

		return &Classification{
			Verdict:    verdict,
			Confidence: 1.0,
			Detail:     truncate(text, 20),
		}, nil
	}

	return nil, lastErr
}

// classifyAPIError maps an openai-go error onto the transient/permanent
// taxonomy. Network-level failures without a status code are transient.
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return Transient(err)
		case apiErr.StatusCode >= 500:
			return Transient(err)
		default:
			return Permanent(err)
		}
	}
	return Transient(err)
}

func isModelNotFound(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func imageDataURL(data []byte) (string, error) {
	resized, err := resizeImage(data, imageMaxEdge)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized), nil
}
