package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// ComparisonRepository provides PostgreSQL-backed storage for finished
// comparisons and their vote ledgers.
type ComparisonRepository struct {
	pool *Pool
}

// NewComparisonRepository creates a repository on top of the pool.
func NewComparisonRepository(pool *Pool) *ComparisonRepository {
	return &ComparisonRepository{pool: pool}
}

// Save stores one comparison and its full vote ledger in a single
// transaction. Saving the same request id again replaces the ledger.
func (r *ComparisonRepository) Save(ctx context.Context, result *compare.Result) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	skipped := make([]string, 0, len(result.SkippedStages))
	for _, s := range result.SkippedStages {
		skipped = append(skipped, string(s))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comparisons (
			id, decision, confidence, stage_reached, stopped_early,
			skipped_stages, tally_same, tally_different, tally_cast,
			tally_possible, elapsed_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			decision = EXCLUDED.decision,
			confidence = EXCLUDED.confidence,
			stage_reached = EXCLUDED.stage_reached,
			stopped_early = EXCLUDED.stopped_early,
			skipped_stages = EXCLUDED.skipped_stages,
			tally_same = EXCLUDED.tally_same,
			tally_different = EXCLUDED.tally_different,
			tally_cast = EXCLUDED.tally_cast,
			tally_possible = EXCLUDED.tally_possible,
			elapsed_ms = EXCLUDED.elapsed_ms,
			created_at = EXCLUDED.created_at
	`,
		result.RequestID, string(result.Decision), result.Confidence,
		string(result.StageReached), result.StoppedEarly, pq.Array(skipped),
		result.Tally.Same, result.Tally.Different, result.Tally.Cast,
		result.Tally.Possible, result.Elapsed.Milliseconds(), result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save comparison: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM votes WHERE comparison_id = $1", result.RequestID); err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	for _, v := range result.Votes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO votes (
				comparison_id, voter_id, stage, verdict, confidence,
				weight, latency_ms, attempts, detail
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			result.RequestID, v.VoterID, string(v.Stage), string(v.Verdict),
			v.Confidence, v.Weight, v.Latency.Milliseconds(), v.Attempts, v.Detail,
		)
		if err != nil {
			return fmt.Errorf("save vote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comparison: %w", err)
	}
	return nil
}

// Get retrieves one comparison with its vote ledger, or nil when the
// id is unknown.
func (r *ComparisonRepository) Get(ctx context.Context, requestID string) (*compare.Result, error) {
	var (
		result  compare.Result
		skipped pq.StringArray
		elapsed int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, decision, confidence, stage_reached, stopped_early,
			skipped_stages, tally_same, tally_different, tally_cast,
			tally_possible, elapsed_ms, created_at
		FROM comparisons
		WHERE id = $1
	`, requestID).Scan(
		&result.RequestID, &result.Decision, &result.Confidence,
		&result.StageReached, &result.StoppedEarly, &skipped,
		&result.Tally.Same, &result.Tally.Different, &result.Tally.Cast,
		&result.Tally.Possible, &elapsed, &result.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comparison: %w", err)
	}

	result.Elapsed = time.Duration(elapsed) * time.Millisecond
	for _, s := range skipped {
		result.SkippedStages = append(result.SkippedStages, compare.Stage(s))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT voter_id, stage, verdict, confidence, weight, latency_ms, attempts, detail
		FROM votes
		WHERE comparison_id = $1
		ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v       compare.Vote
			latency int64
		)
		if err := rows.Scan(&v.VoterID, &v.Stage, &v.Verdict, &v.Confidence,
			&v.Weight, &latency, &v.Attempts, &v.Detail); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Latency = time.Duration(latency) * time.Millisecond
		result.Votes = append(result.Votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}

	return &result, nil
}

// List returns the most recent comparison summaries, newest first,
// without their vote ledgers.
func (r *ComparisonRepository) List(ctx context.Context, limit int) ([]compare.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, decision, confidence, stage_reached, stopped_early,
			tally_same, tally_different, tally_cast, tally_possible,
			elapsed_ms, created_at
		FROM comparisons
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []compare.Result
	for rows.Next() {
		var (
			result  compare.Result
			elapsed int64
		)
		if err := rows.Scan(
			&result.RequestID, &result.Decision, &result.Confidence,
			&result.StageReached, &result.StoppedEarly,
			&result.Tally.Same, &result.Tally.Different, &result.Tally.Cast,
			&result.Tally.Possible, &elapsed, &result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		result.Elapsed = time.Duration(elapsed) * time.Millisecond
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return results, nil
}

// Count returns the number of stored comparisons.
func (r *ComparisonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM comparisons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count comparisons: %w", err)
	}
	return count, nil
}

// Record persists a finished result with an internal deadline. It
// satisfies the pipeline's result sink, which runs off the decision
// path and carries no caller context.
func (r *ComparisonRepository) Record(result *compare.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.Save(ctx, result)
}
