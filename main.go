package main

import (
	"os"

	"github.com/docuvec/docuvec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
