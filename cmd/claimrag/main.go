// Package main provides the entry point for the claimrag CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/claimrag/cmd/claimrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
