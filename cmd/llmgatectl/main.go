package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"llmgate/internal/ctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := ctl.BuildRootCmd(ctl.DefaultConfig()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "llmgatectl:", err)
		stop()
		os.Exit(1)
	}
}
