// Command cbir indexes images and searches for similar ones.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(version, newApp).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cbir: %v\n", err)
		stop()
		os.Exit(1)
	}
}
