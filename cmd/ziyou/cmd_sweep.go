package main

import (
	"context"
	"os"
)

func handleSweepCommand(ctx context.Context, _ []string) {
	a, err := newApp(ctx, false)
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	removed, err := a.svc.SweepExpiredCache(ctx)
	if err != nil {
		PrintError("Error: sweep failed: %v\n", err)
		os.Exit(1)
	}

	if outputCfg.JSON {
		PrintResult(map[string]int64{"removed": removed})
		return
	}
	PrintInfo("Removed %d expired cache entries\n", removed)
}
