package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ninjapivot-api",
	Short: "ninjapivot report service",
	Long:  "API service that accepts tabular data files and produces statistical reports asynchronously.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
