// Package voting implements the weighted voting engine and the voter
// client that feeds it. The engine accumulates votes into a tally,
// applies the adjustable-pair weighting rule and answers whether the
// pipeline can stop early.
package voting

import (
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// Fractions of the adjustable pair's combined per-stage budget.
const (
	pairMajorShare = 0.7
	pairMinorShare = 0.3
)

// PairRule designates two voters whose combined per-stage weight is
// split unevenly: when their verdicts agree, First (the more trusted
// of the two) takes the major share; when they disagree, the major
// share goes to Favored. The split never changes the pair's combined
// weight, so the total possible weight is unaffected.
type PairRule struct {
	First   string
	Second  string
	Favored string
}

func (p PairRule) member(voterID string) bool {
	return voterID == p.First || voterID == p.Second
}

// split divides the pair's combined budget between First and Second.
func (p PairRule) split(total float64, agree bool) (first, second float64) {
	winner := p.First
	if !agree {
		winner = p.Favored
	}
	if winner == p.First {
		return pairMajorShare * total, pairMinorShare * total
	}
	return pairMinorShare * total, pairMajorShare * total
}

// Outcome is the engine's answer after a stage completes.
type Outcome struct {
	StopEarly  bool
	Decision   compare.Decision
	Confidence float64
}

// Engine accumulates weighted votes for one comparison request. It is
// owned by a single request and is not safe for concurrent use.
type Engine struct {
	weights      map[string]map[compare.Stage]float64
	pair         PairRule
	stopFraction float64
	tally        compare.Tally
	pairSeen     map[compare.Stage]*compare.Vote
}

// NewEngine builds an engine for one request. The weights map carries
// each voter's base weight per stage; the sum over all entries is the
// total possible weight before any stage is excluded.
func NewEngine(weights map[string]map[compare.Stage]float64, pair PairRule, stopFraction float64) *Engine {
	possible := 0.0
	for _, stages := range weights {
		for _, w := range stages {
			possible += w
		}
	}
	return &Engine{
		weights:      weights,
		pair:         pair,
		stopFraction: stopFraction,
		tally:        compare.Tally{Possible: possible},
		pairSeen:     make(map[compare.Stage]*compare.Vote),
	}
}

// Tally returns a copy of the current tally.
func (e *Engine) Tally() compare.Tally {
	return e.tally
}

// ExcludeStage removes a skipped stage's weight from the possible
// total. Called when a variant cannot be produced for a request.
func (e *Engine) ExcludeStage(stage compare.Stage) compare.Tally {
	for _, stages := range e.weights {
		e.tally.Possible -= stages[stage]
	}
	return e.tally
}

// Record folds one vote into the tally and stamps its effective weight
// onto the vote itself for the ledger. Error votes carry zero weight
// but still pass through, so the ledger stays complete. When the
// second member of the adjustable pair votes in a stage, the first
// member's already-applied weight is re-split in place.
func (e *Engine) Record(v *compare.Vote) compare.Tally {
	if v.Verdict == compare.VerdictError {
		v.Weight = 0
		return e.tally
	}

	v.Weight = e.baseWeight(v.VoterID, v.Stage)
	if e.pair.member(v.VoterID) {
		e.adjustPair(v)
	}
	e.apply(v.Verdict, v.Weight)
	return e.tally
}

// adjustPair applies the conditional split once both pair verdicts for
// the stage are known. The earlier vote's contribution is retracted
// and re-applied at its new weight; the pair's combined weight in the
// tally is unchanged.
func (e *Engine) adjustPair(v *compare.Vote) {
	prev := e.pairSeen[v.Stage]
	if prev == nil || prev.VoterID == v.VoterID {
		e.pairSeen[v.Stage] = v
		return
	}

	first, second := prev, v
	if first.VoterID != e.pair.First {
		first, second = second, first
	}
	total := e.baseWeight(first.VoterID, first.Stage) + e.baseWeight(second.VoterID, second.Stage)
	firstWeight, secondWeight := e.pair.split(total, first.Verdict == second.Verdict)

	e.apply(prev.Verdict, -prev.Weight)
	if prev == first {
		prev.Weight, v.Weight = firstWeight, secondWeight
	} else {
		prev.Weight, v.Weight = secondWeight, firstWeight
	}
	e.apply(prev.Verdict, prev.Weight)
}

func (e *Engine) baseWeight(voterID string, stage compare.Stage) float64 {
	return e.weights[voterID][stage]
}

func (e *Engine) apply(verdict compare.Verdict, delta float64) {
	switch verdict {
	case compare.VerdictSame:
		e.tally.Same += delta
	case compare.VerdictDifferent:
		e.tally.Different += delta
	}
	e.tally.Cast += delta
}

// Decide reports whether voting can stop now. It stops once the cast
// weight reaches the configured fraction of the possible weight and
// the margin between the two sides exceeds everything still uncast.
// Both conditions only tighten as votes arrive, so a stop verdict can
// never flip back to continue.
func (e *Engine) Decide() Outcome {
	t := e.tally
	if t.Cast == 0 || t.Cast < e.stopFraction*t.Possible {
		return Outcome{}
	}
	lead, trail := t.Same, t.Different
	if trail > lead {
		lead, trail = trail, lead
	}
	if lead-trail > t.Possible-t.Cast {
		return Outcome{
			StopEarly:  true,
			Decision:   t.Leader(),
			Confidence: t.Confidence(),
		}
	}
	return Outcome{}
}

// Final resolves the decision after all stages ran. A tie or an empty
// tally yields an inconclusive result.
func (e *Engine) Final() (compare.Decision, float64) {
	t := e.tally
	if t.Cast == 0 {
		return compare.DecisionInconclusive, 0
	}
	return t.Leader(), t.Confidence()
}
