package main

import (
	"os"

	"github.com/psantana5/mlmon/cmd/mlmon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
