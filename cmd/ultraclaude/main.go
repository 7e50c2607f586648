package main

import (
	"os"

	"github.com/spfcraze/ultraclaude/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
