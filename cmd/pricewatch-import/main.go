package main

import (
	"context"
	"fmt"
	"os"

	"pricewatch/internal/cli"
	"pricewatch/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	cancel()

	if err != nil {
		logger.Error("Command failed", log.FieldError, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
