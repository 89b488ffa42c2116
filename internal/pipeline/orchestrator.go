// Package pipeline drives one comparison request through the staged
// voting pipeline: produce image variants, fan out voter calls per
// stage, fold votes into the tally and stop as soon as the outcome is
// settled.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/variant"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/voting"
)

// VariantProducer builds the per-stage image variants.
type VariantProducer interface {
	Produce(ctx context.Context, stage compare.Stage, imageData []byte) variant.Outcome
}

// Voter casts one vote for a stage. Implementations absorb their own
// failures; Vote always returns a ledger entry.
type Voter interface {
	ID() string
	Vote(ctx context.Context, stage compare.Stage, imageA, imageB []byte) compare.Vote
}

// Config carries the voting parameters shared by all requests.
type Config struct {
	// Weights holds each voter's base weight per stage. A voter is
	// invoked for a stage only when it has a positive weight there.
	Weights      map[string]map[compare.Stage]float64
	Pair         voting.PairRule
	StopFraction float64
}

// Orchestrator runs comparison requests. It holds no per-request
// state and may drive many requests concurrently.
type Orchestrator struct {
	producer VariantProducer
	voters   []Voter
	cfg      Config
	progress ProgressSink
	results  ResultSink
}

// New builds an orchestrator. A nil progress sink discards events; a
// nil result sink skips persistence.
func New(producer VariantProducer, voters []Voter, cfg Config, progress ProgressSink, results ResultSink) *Orchestrator {
	if progress == nil {
		progress = NopSink{}
	}
	return &Orchestrator{
		producer: producer,
		voters:   voters,
		cfg:      cfg,
		progress: progress,
		results:  results,
	}
}

// Run processes one request to completion and always returns a result:
// voter failures become error votes, unavailable variants skip their
// stage, and total exhaustion yields an inconclusive result. The
// request must already be validated.
func (o *Orchestrator) Run(ctx context.Context, req *compare.Request) *compare.Result {
	return o.RunWithProgress(ctx, req, o.progress)
}

// RunWithProgress is Run with a per-request progress sink, used when
// each caller streams its own events. A nil sink discards them.
func (o *Orchestrator) RunWithProgress(ctx context.Context, req *compare.Request, progress ProgressSink) *compare.Result {
	if progress == nil {
		progress = NopSink{}
	}
	start := time.Now()
	engine := voting.NewEngine(o.cfg.Weights, o.cfg.Pair, o.cfg.StopFraction)

	var ledger []compare.Vote
	var skipped []compare.Stage
	stageReached := compare.StageOriginal
	var stop voting.Outcome

	for _, stage := range compare.Stages() {
		voters := o.stageVoters(stage)
		if len(voters) == 0 {
			continue
		}
		stageReached = stage
		progress.OnEvent(req.ID, stage, EventStageStarted)

		variantA := o.producer.Produce(ctx, stage, req.ImageA)
		variantB := o.producer.Produce(ctx, stage, req.ImageB)
		if variantA.Unavailable || variantB.Unavailable {
			engine.ExcludeStage(stage)
			skipped = append(skipped, stage)
			progress.OnEvent(req.ID, stage, EventStageSkipped)
			// Shrinking the possible weight can settle the outcome.
			if out := engine.Decide(); out.StopEarly {
				stop = out
				progress.OnEvent(req.ID, stage, EventEarlyStop)
				break
			}
			continue
		}

		votes := make([]compare.Vote, len(voters))
		var wg sync.WaitGroup
		for i, voter := range voters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				votes[i] = voter.Vote(ctx, stage, variantA.Image, variantB.Image)
			}()
		}
		wg.Wait()

		for i := range votes {
			engine.Record(&votes[i])
		}
		ledger = append(ledger, votes...)
		progress.OnEvent(req.ID, stage, EventStageCompleted)

		if out := engine.Decide(); out.StopEarly {
			stop = out
			progress.OnEvent(req.ID, stage, EventEarlyStop)
			break
		}
	}

	decision, confidence := engine.Final()
	if stop.StopEarly {
		decision, confidence = stop.Decision, stop.Confidence
	}

	result := &compare.Result{
		RequestID:     req.ID,
		Decision:      decision,
		Confidence:    confidence,
		StageReached:  stageReached,
		StoppedEarly:  stop.StopEarly,
		SkippedStages: skipped,
		Votes:         ledger,
		Tally:         engine.Tally(),
		Elapsed:       time.Since(start),
		CreatedAt:     time.Now(),
	}

	if o.results != nil {
		if err := o.results.Record(result); err != nil {
			log.Printf("failed to record comparison %s: %v", req.ID, err)
		}
	}
	return result
}

// stageVoters returns the voters configured with weight for a stage,
// in roster order.
func (o *Orchestrator) stageVoters(stage compare.Stage) []Voter {
	var voters []Voter
	for _, v := range o.voters {
		if o.cfg.Weights[v.ID()][stage] > 0 {
			voters = append(voters, v)
		}
	}
	return voters
}
