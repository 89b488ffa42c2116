package pipeline

import (
	"log"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// EventKind labels a stage-boundary progress event.
type EventKind string

// Progress event kinds emitted by the orchestrator.
const (
	EventStageStarted   EventKind = "stage_started"
	EventStageCompleted EventKind = "stage_completed"
	EventStageSkipped   EventKind = "stage_skipped"
	EventEarlyStop      EventKind = "early_stop"
)

// ProgressSink receives fire-and-forget stage notifications. The
// orchestrator calls it inline on its decision path, so
// implementations must return promptly and never block.
type ProgressSink interface {
	OnEvent(requestID string, stage compare.Stage, kind EventKind)
}

// ResultSink persists finished comparison results. A failing sink is
// logged and ignored; it never affects the decision.
type ResultSink interface {
	Record(result *compare.Result) error
}

// NopSink discards all progress events.
type NopSink struct{}

func (NopSink) OnEvent(string, compare.Stage, EventKind) {}

// LogSink prints progress events to the standard logger.
type LogSink struct{}

func (LogSink) OnEvent(requestID string, stage compare.Stage, kind EventKind) {
	log.Printf("comparison %s: stage %s %s", requestID, stage, kind)
}
