// Package main is the entry point for pgedge-songdwh.
package main

import (
	"fmt"
	"os"

	"github.com/pgEdge/pgedge-songdwh/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
