package main

//go:generate go run ./tools/schema-generator

import (
	"os"

	"github.com/grovetools/contextlang/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
