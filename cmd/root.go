// Package cmd wires the stockchat CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockchat",
	Short: "Stockchat - a conversational front-end over a retail inventory",
	Long: `Stockchat answers free-form questions about store items (price,
quantity, description, aisle) by resolving them to structured lookups
against a live inventory, while a background simulator sells stock over
time.

Running stockchat without arguments starts the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
