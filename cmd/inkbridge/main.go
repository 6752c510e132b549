// inkbridge - batch image translation client
package main

import (
	"os"

	"github.com/inkbridge/inkbridge/internal/cli"
	"github.com/inkbridge/inkbridge/internal/version"
)

// Version information, set by ldflags
var (
	Version   = "v0.4.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
