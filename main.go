package main

import (
	"context"
	"os"

	"github.com/xkilldash9x/scrapedeck/cmd"
)

// main runs the CLI without signal handling; cmd/scrapedeck is the
// signal-aware entry point.
func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
