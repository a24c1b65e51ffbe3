// @title       Task API
// @version     1.0
// @description Task storage with filtering and a PDF summary.
// @BasePath    /
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskboard/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskapi:", err)
		os.Exit(1)
	}
}
