package voting

import (
	"math"
	"testing"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

func testWeights() map[string]map[compare.Stage]float64 {
	return map[string]map[compare.Stage]float64{
		"qwen":    {compare.StageOriginal: 1.0, compare.StageCropped: 1.0, compare.StageAligned: 1.1},
		"chatgpt": {compare.StageOriginal: 1.0, compare.StageCropped: 1.2, compare.StageAligned: 1.1},
		"gemini":  {compare.StageOriginal: 1.0, compare.StageCropped: 1.0, compare.StageAligned: 1.1},
		"facenet": {compare.StageOriginal: 1.0, compare.StageCropped: 1.0},
	}
}

func testPair() PairRule {
	return PairRule{First: "qwen", Second: "gemini", Favored: "qwen"}
}

func vote(voterID string, stage compare.Stage, verdict compare.Verdict) *compare.Vote {
	return &compare.Vote{VoterID: voterID, Stage: stage, Verdict: verdict, Attempts: 1}
}

func checkInvariants(t *testing.T, tally compare.Tally) {
	t.Helper()
	if math.Abs(tally.Same+tally.Different-tally.Cast) > 1e-9 {
		t.Errorf("same (%f) + different (%f) != cast (%f)", tally.Same, tally.Different, tally.Cast)
	}
	if tally.Cast > tally.Possible+1e-9 {
		t.Errorf("cast (%f) exceeds possible (%f)", tally.Cast, tally.Possible)
	}
}

func TestEnginePossibleWeight(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)
	// 4 + (1+1.2+1) + (1.1*3)
	want := 4.0 + 3.2 + 3.3
	if got := engine.Tally().Possible; math.Abs(got-want) > 1e-9 {
		t.Errorf("possible weight = %f, want %f", got, want)
	}
}

func TestEngineRecordAccumulates(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	tally := engine.Record(vote("chatgpt", compare.StageOriginal, compare.VerdictSame))
	checkInvariants(t, tally)
	if tally.Same != 1.0 || tally.Cast != 1.0 {
		t.Errorf("unexpected tally after first vote: %+v", tally)
	}

	tally = engine.Record(vote("facenet", compare.StageOriginal, compare.VerdictDifferent))
	checkInvariants(t, tally)
	if tally.Different != 1.0 || tally.Cast != 2.0 {
		t.Errorf("unexpected tally after second vote: %+v", tally)
	}
}

func TestEngineErrorVoteZeroWeight(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	v := vote("chatgpt", compare.StageOriginal, compare.VerdictError)
	tally := engine.Record(v)
	checkInvariants(t, tally)
	if tally.Cast != 0 {
		t.Errorf("error vote must not cast weight, tally %+v", tally)
	}
	if v.Weight != 0 {
		t.Errorf("error vote weight = %f, want 0", v.Weight)
	}
	// Possible weight is untouched: the voter could have answered.
	if tally.Possible != engine.Tally().Possible {
		t.Error("error vote must not shrink possible weight")
	}
}

func TestEnginePairAgree(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	first := vote("qwen", compare.StageOriginal, compare.VerdictSame)
	second := vote("gemini", compare.StageOriginal, compare.VerdictSame)
	engine.Record(first)
	tally := engine.Record(second)
	checkInvariants(t, tally)

	// Combined budget 2.0 splits 0.7/0.3 toward the first member.
	if math.Abs(first.Weight-1.4) > 1e-9 {
		t.Errorf("qwen weight = %f, want 1.4", first.Weight)
	}
	if math.Abs(second.Weight-0.6) > 1e-9 {
		t.Errorf("gemini weight = %f, want 0.6", second.Weight)
	}
	if math.Abs(tally.Same-2.0) > 1e-9 {
		t.Errorf("combined pair weight changed: same = %f, want 2.0", tally.Same)
	}
}

func TestEnginePairDisagreeFavorsDeclaredVoter(t *testing.T) {
	pair := PairRule{First: "qwen", Second: "gemini", Favored: "gemini"}
	engine := NewEngine(testWeights(), pair, 0.6)

	qwen := vote("qwen", compare.StageOriginal, compare.VerdictSame)
	gemini := vote("gemini", compare.StageOriginal, compare.VerdictDifferent)
	engine.Record(qwen)
	tally := engine.Record(gemini)
	checkInvariants(t, tally)

	if math.Abs(gemini.Weight-1.4) > 1e-9 {
		t.Errorf("favored voter weight = %f, want 1.4", gemini.Weight)
	}
	if math.Abs(qwen.Weight-0.6) > 1e-9 {
		t.Errorf("unfavored voter weight = %f, want 0.6", qwen.Weight)
	}
	if math.Abs(tally.Same-0.6) > 1e-9 || math.Abs(tally.Different-1.4) > 1e-9 {
		t.Errorf("unexpected tally after disagreeing pair: %+v", tally)
	}
}

func TestEnginePairAdjustsRegardlessOfOrder(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	// Second pair member votes first.
	gemini := vote("gemini", compare.StageOriginal, compare.VerdictSame)
	qwen := vote("qwen", compare.StageOriginal, compare.VerdictSame)
	engine.Record(gemini)
	tally := engine.Record(qwen)
	checkInvariants(t, tally)

	if math.Abs(qwen.Weight-1.4) > 1e-9 || math.Abs(gemini.Weight-0.6) > 1e-9 {
		t.Errorf("pair split depends on arrival order: qwen %f, gemini %f", qwen.Weight, gemini.Weight)
	}
}

func TestEnginePairErroredMemberKeepsBaseWeight(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	engine.Record(vote("gemini", compare.StageOriginal, compare.VerdictError))
	qwen := vote("qwen", compare.StageOriginal, compare.VerdictSame)
	tally := engine.Record(qwen)
	checkInvariants(t, tally)

	if math.Abs(qwen.Weight-1.0) > 1e-9 {
		t.Errorf("split applied without both verdicts: weight %f, want 1.0", qwen.Weight)
	}
}

func TestEnginePairIsPerStage(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	engine.Record(vote("qwen", compare.StageOriginal, compare.VerdictSame))
	cropped := vote("gemini", compare.StageCropped, compare.VerdictSame)
	tally := engine.Record(cropped)
	checkInvariants(t, tally)

	if math.Abs(cropped.Weight-1.0) > 1e-9 {
		t.Errorf("pair split leaked across stages: weight %f, want 1.0", cropped.Weight)
	}
}

func TestEngineExcludeStage(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)
	before := engine.Tally().Possible

	tally := engine.ExcludeStage(compare.StageAligned)
	if math.Abs(tally.Possible-(before-3.3)) > 1e-9 {
		t.Errorf("possible after exclude = %f, want %f", tally.Possible, before-3.3)
	}
}

func TestEngineEarlyStop(t *testing.T) {
	// 4 original voters carry 13 of 20 possible weight, all agreeing:
	// 65% cast with an unbeatable margin stops the pipeline.
	weights := map[string]map[compare.Stage]float64{
		"a": {compare.StageOriginal: 4, compare.StageCropped: 2},
		"b": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"c": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"d": {compare.StageOriginal: 3, compare.StageCropped: 1},
	}
	engine := NewEngine(weights, PairRule{}, 0.6)

	for _, id := range []string{"a", "b", "c", "d"} {
		engine.Record(vote(id, compare.StageOriginal, compare.VerdictSame))
	}
	outcome := engine.Decide()
	if !outcome.StopEarly {
		t.Fatalf("expected early stop at 65%% cast, tally %+v", engine.Tally())
	}
	if outcome.Decision != compare.DecisionSame {
		t.Errorf("early stop decision = %s, want %s", outcome.Decision, compare.DecisionSame)
	}
	if outcome.Confidence != 1.0 {
		t.Errorf("early stop confidence = %f, want 1.0", outcome.Confidence)
	}
}

func TestEngineNoStopBelowThreshold(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	// One unanimous vote is decisive but far below the cast threshold.
	engine.Record(vote("chatgpt", compare.StageOriginal, compare.VerdictSame))
	if engine.Decide().StopEarly {
		t.Error("stopped early below the cast-fraction threshold")
	}
}

func TestEngineNoStopWhenMarginFlippable(t *testing.T) {
	weights := map[string]map[compare.Stage]float64{
		"a": {compare.StageOriginal: 4, compare.StageCropped: 2},
		"b": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"c": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"d": {compare.StageOriginal: 3, compare.StageCropped: 1},
	}
	engine := NewEngine(weights, PairRule{}, 0.6)

	// Cast 13 of 20, but a 1-point margin could still be flipped by
	// the 7 points outstanding.
	engine.Record(vote("a", compare.StageOriginal, compare.VerdictSame))
	engine.Record(vote("b", compare.StageOriginal, compare.VerdictSame))
	engine.Record(vote("c", compare.StageOriginal, compare.VerdictDifferent))
	engine.Record(vote("d", compare.StageOriginal, compare.VerdictDifferent))
	if engine.Decide().StopEarly {
		t.Errorf("stopped early with a flippable margin, tally %+v", engine.Tally())
	}
}

func TestEngineStopIsMonotonic(t *testing.T) {
	weights := map[string]map[compare.Stage]float64{
		"a": {compare.StageOriginal: 4, compare.StageCropped: 2},
		"b": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"c": {compare.StageOriginal: 3, compare.StageCropped: 2},
		"d": {compare.StageOriginal: 3, compare.StageCropped: 1},
	}
	engine := NewEngine(weights, PairRule{}, 0.6)

	for _, id := range []string{"a", "b", "c", "d"} {
		engine.Record(vote(id, compare.StageOriginal, compare.VerdictSame))
	}
	first := engine.Decide()
	if !first.StopEarly {
		t.Fatal("expected early stop after original stage")
	}

	// Even if every remaining voter disagreed, the stop verdict holds.
	for _, id := range []string{"a", "b", "c", "d"} {
		engine.Record(vote(id, compare.StageCropped, compare.VerdictDifferent))
	}
	second := engine.Decide()
	if !second.StopEarly {
		t.Error("early stop flipped back to continue after more votes")
	}
	if second.Decision != first.Decision {
		t.Errorf("early stop verdict changed from %s to %s", first.Decision, second.Decision)
	}
}

func TestEngineFinalTieIsInconclusive(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	engine.Record(vote("chatgpt", compare.StageOriginal, compare.VerdictSame))
	engine.Record(vote("facenet", compare.StageOriginal, compare.VerdictDifferent))

	decision, confidence := engine.Final()
	if decision != compare.DecisionInconclusive {
		t.Errorf("tie resolved to %s, want %s", decision, compare.DecisionInconclusive)
	}
	if confidence != 0.5 {
		t.Errorf("tie confidence = %f, want 0.5", confidence)
	}
}

func TestEngineFinalZeroCast(t *testing.T) {
	engine := NewEngine(testWeights(), testPair(), 0.6)

	for _, id := range []string{"qwen", "chatgpt", "gemini", "facenet"} {
		engine.Record(vote(id, compare.StageOriginal, compare.VerdictError))
	}

	decision, confidence := engine.Final()
	if decision != compare.DecisionInconclusive {
		t.Errorf("zero-cast decision = %s, want %s", decision, compare.DecisionInconclusive)
	}
	if confidence != 0 {
		t.Errorf("zero-cast confidence = %f, want 0", confidence)
	}
	if engine.Decide().StopEarly {
		t.Error("empty tally must never stop early")
	}
}
