package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facecompare",
	Short: "A CLI tool for comparing faces with an ensemble of AI voters",
	Long: `Face Compare decides whether two photographs show the same person.
It runs the image pair through a staged pipeline (original, cropped,
aligned) and lets multiple AI vision models plus a local face-embedding
model vote on each stage, weighting the votes into a final verdict.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
