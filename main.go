package main

import "github.com/tahmidi1980-dev/facecomparison3llm/cmd"

func main() {
	cmd.Execute()
}
