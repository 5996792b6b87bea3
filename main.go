package main

import (
	"os"

	"github.com/rvasiliev/feedping/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
