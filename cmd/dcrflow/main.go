package main

import (
	"log/slog"

	"github.com/dcreum/dcrflow/pkg/dcrflow"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	dcrflow.SetupLogger()

	if err := dcrflow.Start(nil); err != nil {
		slog.Error("Service exited with error", "error", err)
	}
}
