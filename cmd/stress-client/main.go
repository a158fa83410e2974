// Package main is the entry point for stress-client.
//
// It connects to the target table, reports ready on stdout, waits for go on
// stdin and then issues weighted operations until interrupted, writing one
// stats record per second to the --output file.
package main

import (
	"os"

	"stress-client/internal/cli"
)

func main() {
	os.Exit(cli.Client(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
