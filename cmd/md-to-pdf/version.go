package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of md-to-pdf",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("md-to-pdf %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
