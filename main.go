package main

import (
	"os"

	"user-api/internal/interface/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
