package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

func testResult() *compare.Result {
	return &compare.Result{
		RequestID:    "req-1",
		Decision:     compare.DecisionSame,
		Confidence:   0.85,
		StageReached: compare.StageCropped,
		StoppedEarly: true,
		Votes: []compare.Vote{
			{VoterID: "qwen", Stage: compare.StageOriginal, Verdict: compare.VerdictSame, Confidence: 1.0, Weight: 1.4, Attempts: 1, Latency: 1200 * time.Millisecond},
			{VoterID: "gemini", Stage: compare.StageOriginal, Verdict: compare.VerdictSame, Confidence: 1.0, Weight: 0.6, Attempts: 2, Latency: 3400 * time.Millisecond},
			{VoterID: "chatgpt", Stage: compare.StageOriginal, Verdict: compare.VerdictError, Attempts: 3, Latency: 9000 * time.Millisecond, Detail: "transient: timeout"},
		},
		Tally:     compare.Tally{Same: 2.0, Cast: 2.0, Possible: 3.0},
		Elapsed:   10 * time.Second,
		CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open audit file: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse audit file: %v", err)
	}
	return rows
}

func TestCSVLogWritesHeaderAndVoteRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	audit, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("failed to create audit log: %v", err)
	}

	if err := audit.Record(testResult()); err != nil {
		t.Fatalf("failed to record result: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("audit file has %d rows, want header + 3 votes", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][4] != "verdict" {
		t.Errorf("unexpected header row: %v", rows[0])
	}

	qwen := rows[1]
	if qwen[1] != "req-1" || qwen[3] != "qwen" || qwen[4] != "same" {
		t.Errorf("unexpected vote row: %v", qwen)
	}
	if qwen[6] != "1.400" {
		t.Errorf("weight column = %s, want 1.400", qwen[6])
	}
	if qwen[9] != "same" || qwen[11] != "true" {
		t.Errorf("decision columns = %s/%s, want same/true", qwen[9], qwen[11])
	}

	failed := rows[3]
	if failed[4] != "error" || failed[7] != "3" {
		t.Errorf("error vote row = %v, want verdict error with 3 attempts", failed)
	}
}

func TestCSVLogAppendsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")

	first, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("failed to create audit log: %v", err)
	}
	if err := first.Record(testResult()); err != nil {
		t.Fatalf("failed to record result: %v", err)
	}

	// Reopening must not rewrite the header or truncate old rows.
	second, err := NewCSVLog(path)
	if err != nil {
		t.Fatalf("failed to reopen audit log: %v", err)
	}
	if err := second.Record(testResult()); err != nil {
		t.Fatalf("failed to record second result: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 7 {
		t.Fatalf("audit file has %d rows, want header + 6 votes", len(rows))
	}
	headers := 0
	for _, row := range rows {
		if row[0] == "timestamp" {
			headers++
		}
	}
	if headers != 1 {
		t.Errorf("audit file has %d header rows, want 1", headers)
	}
}
