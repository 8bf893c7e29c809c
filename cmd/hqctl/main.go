package main

import (
	"os"

	"nexushq/cmd/hqctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
