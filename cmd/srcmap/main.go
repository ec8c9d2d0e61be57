// Command srcmap encodes, queries, composes and validates Source Map v3
// files.
//
// Usage:
//
//	srcmap encode [decoded.json]             Encode a decoded map
//	srcmap decode [map]                      Decode a map into structured mappings
//	srcmap flatten [map]                     Flatten a sectioned map
//	srcmap compose <outer> [inners...]       Compose the maps of chained transforms
//	srcmap lookup <map> <line:column>        Original position of a generated one
//	srcmap reverse <map> <source> <l:c>      Generated positions of an original one
//	srcmap validate <maps or dirs...>        Report structural faults
//	srcmap watch <dir>                       Re-validate maps as they change
//	srcmap vlq encode|decode                 Base64 VLQ codec
//
// Config file:
//
//	srcmap looks for srcmap.json, .srcmaprc, .srcmaprc.json, srcmap.toml,
//	srcmap.yaml or srcmap.yml next to the input and in parent directories.
//	Config file options are overridden by CLI flags.
//
// Example srcmap.toml:
//
//	sourceRoot = "src/"
//	skipRedundant = true
//	disabledRules = ["SM010"]
//
//	[rules]
//	SM005 = "warning"
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/HugoDaniel/srcmap/internal/cli"
)

// Set via ldflags.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.SetVersion(version, commit, date)
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
