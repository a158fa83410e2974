// Package main is the entry point for stress-launcher.
//
// It starts several stress-client processes, releases them together with
// the ready/go handshake, interrupts them after --duration and prints the
// aggregated per-second counts.
package main

import (
	"os"

	"stress-client/internal/cli"
)

func main() {
	os.Exit(cli.Launcher(os.Args[1:], os.Stdout, os.Stderr))
}
