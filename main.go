// Package main is the entry point for the hdrview packet header decoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/hdrview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
