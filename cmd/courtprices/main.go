package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"courtprices/cmd/courtprices/commands"
	"courtprices/lib/telemetry"
	"courtprices/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "courtprices", "telemetry.json5")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tel.Shutdown(shutdownCtx)

	if err != nil {
		os.Exit(1)
	}
}
