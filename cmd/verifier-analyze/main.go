// verifier-analyze measures how well the network verifier's own health
// signal predicts real egress failures, from the CSV log of its cron job.
//
// Usage:
//
//	verifier-analyze analyze cron.csv [--hcp|--no-hcp] [--since=T] [--until=T]
//	verifier-analyze lookup CID...
//	verifier-analyze validate cron.csv
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
