package cmd

import (
	"github.com/adalundhe/prism/core/token"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List extractable token categories",
	Run: func(cmd *cobra.Command, args []string) {
		for _, category := range token.AllCategories() {
			cmd.Println(string(category))
		}
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
