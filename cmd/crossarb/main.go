// Package main is the entry point for the cross-chain arbitrage engine.
package main

import "github.com/fd1az/crosschain-arb/internal/cli"

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Execute(cli.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate})
}
