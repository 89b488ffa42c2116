package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/config"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/pipeline"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/store"
)

var compareCmd = &cobra.Command{
	Use:   "compare IMAGE_A IMAGE_B",
	Short: "Compare two face photographs",
	Long: `Compare two photographs and decide whether they show the same person.
Both images are run through the staged voting pipeline; the verdict,
confidence and the full vote ledger are printed when done.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Bool("json", false, "Print the full result as JSON")
	compareCmd.Flags().String("csv", "", "Append the vote ledger to this CSV audit file")
	compareCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

// barSink advances a progress bar as pipeline stages finish.
type barSink struct {
	bar *progressbar.ProgressBar
}

func (s barSink) OnEvent(requestID string, stage compare.Stage, kind pipeline.EventKind) {
	switch kind {
	case pipeline.EventStageCompleted, pipeline.EventStageSkipped:
		s.bar.Add(1)
	case pipeline.EventEarlyStop:
		s.bar.Finish()
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	imageA, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	imageB, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	req, err := compare.NewRequest(imageA, imageB)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	var results pipeline.ResultSink
	csvPath := mustGetString(cmd, "csv")
	if csvPath == "" {
		csvPath = cfg.Audit.CSVPath
	}
	if csvPath != "" {
		audit, err := store.NewCSVLog(csvPath)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		results = audit
	}

	ctx := context.Background()
	orch, err := buildOrchestrator(ctx, cfg, results)
	if err != nil {
		return err
	}

	var progress pipeline.ProgressSink
	if !mustGetBool(cmd, "no-progress") && !mustGetBool(cmd, "json") {
		bar := progressbar.NewOptions(len(compare.Stages()),
			progressbar.OptionSetDescription("Comparing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("stages"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
		progress = barSink{bar: bar}
	}

	result := orch.RunWithProgress(ctx, req, progress)
	fmt.Println()

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Print(result.Report())
	return nil
}
