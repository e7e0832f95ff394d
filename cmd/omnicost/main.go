package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zgpcy/omnicost/internal/cli"
	"github.com/zgpcy/omnicost/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Credentials may live in a .env file next to the working directory
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.NewApp(os.Stdout, os.Stderr).Execute(ctx, os.Args[1:])
}
