// Package main is the entry point for the wdlrun CLI.
package main

import (
	"fmt"
	"os"

	"github.com/wdlrun/wdlrun/cmd/wdlrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
