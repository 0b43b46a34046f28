// The main package for the starcrawl executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/stellargo/starcrawl/cmd"
)

// main installs interrupt handling and defers everything else to the CLI.
// An interrupt is honored at the crawl engine's next suspension point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
