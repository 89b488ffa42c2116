package compare

import (
	"fmt"
	"strings"
)

// Report renders a human-readable breakdown of the comparison, grouped
// by stage. Used by the CLI and kept alongside the persisted result.
func (r *Result) Report() string {
	var b strings.Builder

	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("COMPARISON REPORT\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "Request:      %s\n", r.RequestID)
	fmt.Fprintf(&b, "Decision:     %s\n", strings.ToUpper(string(r.Decision)))
	fmt.Fprintf(&b, "Confidence:   %.1f%%\n", r.Confidence*100)
	fmt.Fprintf(&b, "Stage:        %s\n", r.StageReached)
	fmt.Fprintf(&b, "Early stop:   %v\n", r.StoppedEarly)
	fmt.Fprintf(&b, "Weight cast:  %.2f of %.2f\n", r.Tally.Cast, r.Tally.Possible)

	for _, stage := range Stages() {
		if r.skipped(stage) {
			fmt.Fprintf(&b, "\n%s: skipped (variant unavailable)\n", strings.ToUpper(string(stage)))
			continue
		}
		votes := r.StageVotes(stage)
		if len(votes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(string(stage)))
		for _, v := range votes {
			fmt.Fprintf(&b, "  - %-10s %-10s weight %.2f  attempts %d", v.VoterID, v.Verdict, v.Weight, v.Attempts)
			if v.Detail != "" {
				fmt.Fprintf(&b, "  [%s]", v.Detail)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(line + "\n")
	return b.String()
}

func (r *Result) skipped(stage Stage) bool {
	for _, s := range r.SkippedStages {
		if s == stage {
			return true
		}
	}
	return false
}
