// Package main is the entry point for the akahu-sync CLI.
package main

import (
	"os"

	"github.com/nzfintools/akahu-budget-sync/cmd/akahu-sync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
