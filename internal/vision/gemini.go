package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiBackend classifies image pairs with the Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	name      string
	model     string
	fallbacks []string
}

// NewGeminiBackend creates a Gemini-backed voter.
func NewGeminiBackend(ctx context.Context, apiKey, name, model string, fallbacks []string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiBackend{
		client:    client,
		name:      name,
		model:     model,
		fallbacks: fallbacks,
	}, nil
}

func (b *GeminiBackend) Name() string {
	return b.name
}

func (b *GeminiBackend) Classify(ctx context.Context, imageA, imageB []byte) (*Classification, error) {
	jpegA, err := resizeImage(imageA, imageMaxEdge)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to prepare first image: %w", err))
	}
	jpegB, err := resizeImage(imageB, imageMaxEdge)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to prepare second image: %w", err))
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: jpegA, MIMEType: "image/jpeg"}},
				{InlineData: &genai.Blob{Data: jpegB, MIMEType: "image/jpeg"}},
				{Text: comparisonPrompt},
			},
		},
	}

	models := append([]string{b.model}, b.fallbacks...)
	var lastErr error

	for _, model := range models {
		result, err := b.client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			classified := classifyGeminiError(err)
			if isGeminiModelNotFound(err) {
				lastErr = classified
				continue
			}
			return nil, classified
		}

		text := result.Text()
		if text == "" {
			return nil, Transient(errors.New("empty response from Gemini"))
		}

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

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return Transient(err)
		case apiErr.Code >= 500:
			return Transient(err)
		default:
			return Permanent(err)
		}
	}
	return Transient(err)
}

func isGeminiModelNotFound(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
