// Package main provides the spyglass wrapper entry point. Everything
// after the binary name is the child argv; with no arguments the user's
// shell is spawned. No flags affect the core contract.
package main

import (
	"fmt"
	"os"

	"github.com/abdullathedruid/spyglass/internal/config"
	"github.com/abdullathedruid/spyglass/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spyglass: config: %v\n", err)
		os.Exit(1)
	}

	code, err := session.Run(cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "spyglass: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}
