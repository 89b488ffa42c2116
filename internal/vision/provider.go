// Package vision wraps the classifiers that answer whether two images
// show the same person: remote vision-language models and the local
// face-embedding service. All backends implement one interface; the
// pipeline never branches on the concrete kind.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// comparisonPrompt is sent to every vision-language backend.
const comparisonPrompt = "Are these two images showing the same person? Answer only YES or NO."

// Classification is a backend's normalized answer for one image pair.
type Classification struct {
	Verdict    compare.Verdict
	Confidence float64 // in [0, 1]
	Detail     string  // raw answer or distance, kept for the audit ledger
}

// Backend classifies one image pair. Implementations are stateless and
// safe for concurrent use across requests.
type Backend interface {
	Name() string
	Classify(ctx context.Context, imageA, imageB []byte) (*Classification, error)
}

// PermanentError marks a failure that retrying cannot fix: malformed
// input, auth failure, or an answer that cannot be normalized.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error { return &PermanentError{Err: err} }

// TransientError marks a failure worth retrying: timeout, rate limit,
// or an upstream 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error) error { return &TransientError{Err: err} }

// Retryable reports whether a classify error is worth another attempt.
// Anything not explicitly permanent is treated as transient.
func Retryable(err error) bool {
	var perm *PermanentError
	return !errors.As(err, &perm)
}

// parseVerdict normalizes a model's free-text answer into a verdict.
// Returns a permanent error when the answer fits neither shape.
func parseVerdict(text string) (compare.Verdict, error) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(upper, "YES") && !strings.Contains(upper, "NO"):
		return compare.VerdictSame, nil
	case strings.Contains(upper, "NO"):
		return compare.VerdictDifferent, nil
	default:
		return "", Permanent(fmt.Errorf("unparsable answer %q", truncate(text, 40)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
