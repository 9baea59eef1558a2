package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "sourcerer",
		Short: "Multi-source query orchestration service",
	}

	root.AddCommand(serveCMD(), queryCMD())
	_ = root.Execute()
}
