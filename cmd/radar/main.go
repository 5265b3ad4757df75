package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "radar",
		Short: "Viral-content collection agent",
	}
	root.AddCommand(runCMD(), serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
