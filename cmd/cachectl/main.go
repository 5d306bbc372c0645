// Command cachectl inspects and edits the word validation cache used by the
// game server.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cobra.CheckErr(newRootCmd().ExecuteContext(ctx))
}
