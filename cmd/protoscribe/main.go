// Package main is the entry point for the protoscribe CLI.
//
// Usage:
//
//	protoscribe [flags] <command> [args]
//
// Commands:
//
//	serve        - Run the HTTP chat and document generation service
//	generate     - Generate a survey protocol from a transcript file
//	instruction  - Show or replace the assistant instruction
//	version      - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/protoscribe/protoscribe/cmd/protoscribe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
