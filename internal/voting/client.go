package voting

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/vision"
)

// ClientConfig bounds one voter's outbound calls.
type ClientConfig struct {
	MaxAttempts int           // attempt ceiling per vote, including the first call
	Timeout     time.Duration // per-attempt deadline
	Backoff     time.Duration // pause before retry, grows linearly per attempt
	RateDelay   time.Duration // minimum spacing between calls to the same backend
}

// VoterClient wraps one backend with rate limiting, per-attempt
// timeouts and retry. It holds no per-request state and may serve
// many requests concurrently.
type VoterClient struct {
	id      string
	backend vision.Backend
	limiter *rate.Limiter
	cfg     ClientConfig
}

// NewVoterClient builds a client for one configured voter.
func NewVoterClient(id string, backend vision.Backend, cfg ClientConfig) *VoterClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &VoterClient{
		id:      id,
		backend: backend,
		limiter: rate.NewLimiter(rate.Every(cfg.RateDelay), 1),
		cfg:     cfg,
	}
}

// ID returns the voter's configured identity.
func (c *VoterClient) ID() string {
	return c.id
}

// Vote asks the backend to classify the pair and normalizes the answer
// into a ledger entry. Transient failures are retried with the same
// image pair up to the attempt ceiling; permanent failures are not.
// A vote is always returned: exhausted or permanent failures become an
// error vote, never a pipeline failure.
func (c *VoterClient) Vote(ctx context.Context, stage compare.Stage, imageA, imageB []byte) compare.Vote {
	start := time.Now()

	var cls *vision.Classification
	var err error
	attempts := 0
	for attempts < c.cfg.MaxAttempts {
		attempts++
		if err = c.limiter.Wait(ctx); err != nil {
			break
		}
		cls, err = c.classify(ctx, imageA, imageB)
		if err == nil || !vision.Retryable(err) {
			break
		}
		if attempts < c.cfg.MaxAttempts {
			if err = sleep(ctx, time.Duration(attempts)*c.cfg.Backoff); err != nil {
				break
			}
		}
	}

	vote := compare.Vote{
		VoterID:  c.id,
		Stage:    stage,
		Latency:  time.Since(start),
		Attempts: attempts,
	}
	if err != nil {
		vote.Verdict = compare.VerdictError
		vote.Detail = err.Error()
		return vote
	}
	vote.Verdict = cls.Verdict
	vote.Confidence = cls.Confidence
	vote.Detail = cls.Detail
	return vote
}

func (c *VoterClient) classify(ctx context.Context, imageA, imageB []byte) (*vision.Classification, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return c.backend.Classify(ctx, imageA, imageB)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
