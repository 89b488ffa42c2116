package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

var csvHeader = []string{
	"timestamp", "request_id", "stage", "voter_id", "verdict",
	"confidence", "weight", "attempts", "latency_ms",
	"decision", "decision_confidence", "stopped_early",
}

// CSVLog appends one audit row per vote to a flat CSV file. It is safe
// for concurrent use and satisfies the pipeline's result sink.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog creates the audit log, writing the header row when the
// file does not exist yet.
func NewCSVLog(path string) (*CSVLog, error) {
	l := &CSVLog{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeRows([][]string{csvHeader}); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	return l, nil
}

// Record appends the result's full vote ledger to the audit file.
func (l *CSVLog) Record(result *compare.Result) error {
	timestamp := result.CreatedAt.Format("2006-01-02 15:04:05")
	rows := make([][]string, 0, len(result.Votes))
	for _, v := range result.Votes {
		rows = append(rows, []string{
			timestamp,
			result.RequestID,
			string(v.Stage),
			v.VoterID,
			string(v.Verdict),
			strconv.FormatFloat(v.Confidence, 'f', 3, 64),
			strconv.FormatFloat(v.Weight, 'f', 3, 64),
			strconv.Itoa(v.Attempts),
			strconv.FormatInt(v.Latency.Milliseconds(), 10),
			string(result.Decision),
			strconv.FormatFloat(result.Confidence, 'f', 3, 64),
			strconv.FormatBool(result.StoppedEarly),
		})
	}
	if err := l.writeRows(rows); err != nil {
		return fmt.Errorf("append audit rows: %w", err)
	}
	return nil
}

func (l *CSVLog) writeRows(rows [][]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
