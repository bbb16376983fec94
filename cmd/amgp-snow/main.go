// Command amgp-snow is an example data plugin. Install the binary as AMGP_SNW
// in plugins.dir and amgp serves its capability to presets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alucardeht/amgp/pkg/protocol"
)

type snow struct{}

func (snow) Identity() protocol.Identity {
	return protocol.Identity{Name: "AMGP_SNW", UID: "01410450"}
}

func (snow) Capabilities() map[string]protocol.Capability {
	return map[string]protocol.Capability{
		"snow_stations": {
			Description: "24hr rain and snow amounts for select stations",
			TimeFormat:  protocol.TimeFormat{"day1"},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := protocol.Serve(ctx, protocol.Stdio(), snow{}); err != nil {
		fmt.Fprintf(os.Stderr, "amgp-snow: %v\n", err)
		os.Exit(1)
	}
}
