// Package main is the entry point for the padictl operator CLI.
package main

import (
	"os"

	"github.com/agenthands/padi/cmd/padictl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
