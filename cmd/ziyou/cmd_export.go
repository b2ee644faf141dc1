package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ryanm101/ziyou/internal/export"
)

func handleExportCommand(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: ziyou export <profile.json | -> <format> [file]")
		fmt.Println("Formats: csv, json, txt")
		os.Exit(1)
	}

	format, err := export.ParseFormat(args[1])
	if err != nil {
		PrintError("Error: %v\n", err)
		fmt.Println("Valid formats: csv, json, txt")
		os.Exit(1)
	}

	profile, err := readProfile(args[0])
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	if err := profile.Validate(); err != nil {
		PrintError("Error: invalid profile: %v\n", err)
		os.Exit(1)
	}

	a, err := newApp(ctx, true)
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	games, err := a.svc.Recommend(ctx, profile)
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}

	data, err := export.Export(games, format)
	if err != nil {
		PrintError("Error exporting: %v\n", err)
		os.Exit(1)
	}

	if len(args) >= 3 {
		outputFile := args[2]
		if err := os.WriteFile(outputFile, data, 0o644); err != nil {
			PrintError("Error writing file: %v\n", err)
			os.Exit(1)
		}
		PrintInfo("Exported %d games as %s to %s\n", len(games), format, outputFile)
		return
	}
	fmt.Print(string(data))
}
