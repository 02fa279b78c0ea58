package main

import (
	"os"

	"github.com/adalundhe/prism/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
