// Command lanwatch is the LAN device presence monitor.
package main

import (
	"lanwatch/cmd/cli"
)

// Build information, overridden by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
