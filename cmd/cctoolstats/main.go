package main

import (
	"log/slog"
	"os"

	"github.com/Dicklesworthstone/cctoolstats/cmd/cctoolstats/cmd"
	"github.com/Dicklesworthstone/cctoolstats/internal/logging"
)

func main() {
	logging.Init(false, slog.LevelWarn)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
