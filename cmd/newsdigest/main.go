package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "newsdigest",
		Short:        "Conversational news digest service",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
