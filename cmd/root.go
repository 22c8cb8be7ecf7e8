// Package cmd contains the CLI commands and user interaction loop.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "docchat - chat with your documents from the terminal",
	Long: `docchat is a retrieval-augmented document assistant.

Drop files into the data directory or upload them in the chat loop,
select the ones that matter, and ask questions grounded in their
content. Running docchat without arguments starts the interactive
chat loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute is the main entry point for the docchat CLI.
func Execute() error {
	return rootCmd.Execute()
}
