package main

import "github.com/spf13/cobra"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "heysheets",
	Short:         "Storefront chat assistant over a spreadsheet backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(tabCmd)
}
