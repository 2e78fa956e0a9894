// Package main is the entry point for the eboekhouden-sync CLI.
package main

import (
	"os"

	"github.com/verenigingen/eboekhouden-sync/cmd/eboekhouden-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
