package cmd

import (
	"context"
	"fmt"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/config"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/faceapi"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/pipeline"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/variant"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/vision"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/voting"
)

// buildOrchestrator wires the configured roster into a ready pipeline:
// one client per voter in roster order, the variant producer on the
// face service, and the voting parameters from the environment.
func buildOrchestrator(ctx context.Context, cfg *config.Config, results pipeline.ResultSink) (*pipeline.Orchestrator, error) {
	faces := faceapi.NewClient(cfg.FaceAPI.URL)
	producer := variant.NewProducer(faces)

	clientCfg := voting.ClientConfig{
		MaxAttempts: cfg.Voting.MaxAttempts,
		Timeout:     cfg.Voting.RequestTimeout,
		Backoff:     cfg.Voting.RateDelay,
		RateDelay:   cfg.Voting.RateDelay,
	}

	var voters []pipeline.Voter
	weights := make(map[string]map[compare.Stage]float64)
	for _, vc := range cfg.Roster.Voters {
		backend, err := vision.NewBackend(ctx, cfg, vc, faces)
		if err != nil {
			return nil, fmt.Errorf("building voter %q: %w", vc.ID, err)
		}
		voters = append(voters, voting.NewVoterClient(vc.ID, backend, clientCfg))
		weights[vc.ID] = vc.StageWeights()
	}

	pipelineCfg := pipeline.Config{
		Weights: weights,
		Pair: voting.PairRule{
			First:   cfg.Roster.Pair.First,
			Second:  cfg.Roster.Pair.Second,
			Favored: cfg.Roster.Pair.Favored,
		},
		StopFraction: cfg.Voting.EarlyStopFraction,
	}

	return pipeline.New(producer, voters, pipelineCfg, nil, results), nil
}
