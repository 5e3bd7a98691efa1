// Package main provides the leapgrt command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapgrt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
