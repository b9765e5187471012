// Package main is the entry point for the sandbox CLI binary.
package main

import (
	"os"

	cli "sql-sandbox/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
