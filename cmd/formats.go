package cmd

import (
	"github.com/adalundhe/prism/core/generate"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported output formats",
	Run: func(cmd *cobra.Command, args []string) {
		for _, format := range generate.NewAgent().Formats() {
			cmd.Println(format)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
