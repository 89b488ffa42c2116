package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/faceapi"
)

// FaceDetector is the slice of the face service the local voter needs.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*faceapi.DetectResponse, error)
}

// FaceNetBackend votes by comparing face embeddings from the local face
// service. Same person when the cosine distance of the best faces falls
// below the threshold. Fully deterministic for fixed inputs.
type FaceNetBackend struct {
	faces     FaceDetector
	name      string
	threshold float64
}

// NewFaceNetBackend creates the local embedding-distance voter.
func NewFaceNetBackend(faces FaceDetector, name string, threshold float64) *FaceNetBackend {
	return &FaceNetBackend{faces: faces, name: name, threshold: threshold}
}

func (b *FaceNetBackend) Name() string {
	return b.name
}

func (b *FaceNetBackend) Classify(ctx context.Context, imageA, imageB []byte) (*Classification, error) {
	embA, err := b.bestEmbedding(ctx, imageA, "first")
	if err != nil {
		return nil, err
	}
	embB, err := b.bestEmbedding(ctx, imageB, "second")
	if err != nil {
		return nil, err
	}

	distance := faceapi.CosineDistance(embA, embB)

	verdict := compare.VerdictDifferent
	if distance < b.threshold {
		verdict = compare.VerdictSame
	}

	return &Classification{
		Verdict:    verdict,
		Confidence: distanceConfidence(distance, b.threshold),
		Detail:     fmt.Sprintf("distance=%.3f", distance),
	}, nil
}

func (b *FaceNetBackend) bestEmbedding(ctx context.Context, imageData []byte, which string) ([]float32, error) {
	resp, err := b.faces.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, classifyFaceAPIError(err)
	}
	face, err := resp.BestFace()
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s image: %w", which, err))
	}
	if len(face.Embedding) == 0 {
		return nil, Permanent(fmt.Errorf("%s image: face has no embedding", which))
	}
	return face.Embedding, nil
}

func classifyFaceAPIError(err error) error {
	var statusErr *faceapi.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == 429 || statusErr.Code >= 500 {
			return Transient(err)
		}
		return Permanent(err)
	}
	return Transient(err)
}

// distanceConfidence maps a cosine distance onto [0.5, 1]: full
// confidence at distance 0 or at twice the threshold, half confidence
// right at the decision boundary.
func distanceConfidence(distance, threshold float64) float64 {
	if threshold <= 0 {
		return 0.5
	}
	margin := distance - threshold
	if margin < 0 {
		margin = -margin
	}
	conf := 0.5 + margin/(2*threshold)
	if conf > 1 {
		conf = 1
	}
	return conf
}
