package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/g960059/ttguide/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	r := cli.NewRunner(os.Stdout, os.Stderr)
	code := r.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
