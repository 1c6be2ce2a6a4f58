package main

import (
	"os"

	"github.com/abramin/proftree/cmd/proftree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
