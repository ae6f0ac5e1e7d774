// Package main provides the entry point for the weavelens CLI.
package main

import (
	"os"

	"github.com/weavelens/weavelens/cmd/weavelens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
