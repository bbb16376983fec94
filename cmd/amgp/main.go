// Command amgp discovers components, resolves render timestamps and plans
// presets.
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	err := rootCmd.Execute()
	if closeErr := env.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", closeErr)
		if err == nil {
			err = closeErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
