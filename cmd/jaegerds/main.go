// Package main provides the jaegerds command: the HTTP API server plus
// one-shot lookup, search, upload and connection test commands.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
