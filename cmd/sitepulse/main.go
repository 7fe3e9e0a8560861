package main

import (
	"os"

	"github.com/sitepulse/sitepulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
