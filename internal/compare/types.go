// Package compare defines the core domain types shared by the comparison
// pipeline: stages, verdicts, votes, tallies and the final result.
package compare

import (
	"time"
)

// Stage identifies one image-preprocessing variant of the pipeline.
type Stage string

// Pipeline stages in their fixed execution order.
const (
	StageOriginal Stage = "original"
	StageCropped  Stage = "cropped"
	StageAligned  Stage = "aligned"
)

// Stages returns all stages in execution order.
func Stages() []Stage {
	return []Stage{StageOriginal, StageCropped, StageAligned}
}

// Verdict is a single voter's answer for one stage.
type Verdict string

// Verdict values. VerdictError marks a vote that failed to produce an
// answer; it is kept in the ledger for audit but carries zero weight.
const (
	VerdictSame      Verdict = "same"
	VerdictDifferent Verdict = "different"
	VerdictError     Verdict = "error"
)

// Decision is the final outcome of a comparison.
type Decision string

// Decision values.
const (
	DecisionSame         Decision = "same"
	DecisionDifferent    Decision = "different"
	DecisionInconclusive Decision = "inconclusive"
)

// Vote is one voter's verdict for one stage. Weight is the effective
// weight assigned when the vote is recorded by the voting engine; it is
// zero for error votes.
type Vote struct {
	VoterID    string        `json:"voter_id"`
	Stage      Stage         `json:"stage"`
	Verdict    Verdict       `json:"verdict"`
	Confidence float64       `json:"confidence"`
	Weight     float64       `json:"weight"`
	Latency    time.Duration `json:"latency"`
	Attempts   int           `json:"attempts"`
	Detail     string        `json:"detail,omitempty"`
}

// Tally is the running weighted aggregate of all recorded votes.
// Invariant: Same + Different == Cast <= Possible.
type Tally struct {
	Same      float64 `json:"same"`
	Different float64 `json:"different"`
	Cast      float64 `json:"cast"`
	Possible  float64 `json:"possible"`
}

// Confidence is the share of cast weight held by the leading side.
// It is zero when no weight has been cast.
func (t Tally) Confidence() float64 {
	if t.Cast == 0 {
		return 0
	}
	lead := t.Same
	if t.Different > lead {
		lead = t.Different
	}
	return lead / t.Cast
}

// Leader returns the decision currently holding the greater weight.
// An exact tie or an empty tally yields DecisionInconclusive.
func (t Tally) Leader() Decision {
	switch {
	case t.Same > t.Different:
		return DecisionSame
	case t.Different > t.Same:
		return DecisionDifferent
	default:
		return DecisionInconclusive
	}
}

// Result is the terminal artifact of one comparison. It is assembled
// once by the orchestrator and immutable afterwards.
type Result struct {
	RequestID     string        `json:"request_id"`
	Decision      Decision      `json:"decision"`
	Confidence    float64       `json:"confidence"`
	StageReached  Stage         `json:"stage_reached"`
	StoppedEarly  bool          `json:"stopped_early"`
	SkippedStages []Stage       `json:"skipped_stages,omitempty"`
	Votes         []Vote        `json:"votes"`
	Tally         Tally         `json:"tally"`
	Elapsed       time.Duration `json:"elapsed"`
	CreatedAt     time.Time     `json:"created_at"`
}

// StageVotes returns the ledger entries cast during the given stage.
func (r *Result) StageVotes(stage Stage) []Vote {
	var votes []Vote
	for _, v := range r.Votes {
		if v.Stage == stage {
			votes = append(votes, v)
		}
	}
	return votes
}
