package main

import (
	"os"

	"github.com/ledgerline/statements/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
