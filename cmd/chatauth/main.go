// Package main is the entry point for the chatauth backend.
package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/chatauth/internal/cli"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := cli.NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
