package main

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/baggage"

	"github.com/ryanm101/ziyou/internal/config"
	"github.com/ryanm101/ziyou/internal/logging"
	"github.com/ryanm101/ziyou/internal/tracing"
)

const version = "0.1.0"

var cfg *config.Config

// cfgErr holds the config load failure. Commands that touch the cache or
// upstream APIs refuse to run with it set.
var cfgErr error

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	m, _ := baggage.NewMember("app.version", version)
	b, _ := baggage.New(m)
	ctx = baggage.ContextWithBaggage(ctx, b)

	cfg, cfgErr = config.Load()
	if cfgErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", cfgErr)
		cfg = config.DefaultConfig()
	}

	logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})

	shutdown, err := tracing.Setup(ctx, tracing.DefaultConfig())
	if err != nil {
		logging.Error("failed to setup tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				logging.Error("failed to shutdown tracing", "error", err)
			}
		}()
	}

	args := parseGlobalFlags(os.Args[1:])

	if len(args) < 1 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "serve":
		if err := runServe(ctx); err != nil {
			PrintError("Error: %v\n", err)
			return 1
		}
	case "sweep":
		handleSweepCommand(ctx, args[1:])
	case "recommend":
		if len(args) < 2 {
			fmt.Println("Usage: ziyou recommend <profile.json | ->")
			return 1
		}
		handleRecommendCommand(ctx, args[1:])
	case "browse":
		if len(args) < 2 {
			fmt.Println("Usage: ziyou browse <profile.json | ->")
			return 1
		}
		handleBrowseCommand(ctx, args[1:])
	case "export":
		handleExportCommand(ctx, args[1:])
	case "config":
		handleConfigCommand(args[1:])
	case "version":
		PrintResult(map[string]string{"version": version})
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println("ziyou - AI game recommendations")
	fmt.Println()
	fmt.Println("Usage: ziyou [global options] <command> [options]")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --json                     Output in JSON format")
	fmt.Println("  --quiet, -q                Suppress non-error output")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                      Run the HTTP API")
	fmt.Println("  sweep                      Delete expired cache entries")
	fmt.Println("  recommend <file|->         Recommend games for a JSON profile")
	fmt.Println("  browse <file|->            Recommend and browse results interactively")
	fmt.Println("  export <file|-> <fmt> [out] Export recommendations (csv/json/txt)")
	fmt.Println("  config show                Show active configuration")
	fmt.Println("  config init                Write an example .ziyou.yaml")
	fmt.Println("  version                    Show version")
	fmt.Println("  help                       Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GEMINI_API_KEY             Gemini API key")
	fmt.Println("  RAWG_API_KEY               RAWG API key")
	fmt.Println("  ZIYOU_DB                   Cache database path (default: data/game_cache.db)")
	fmt.Println("  ZIYOU_CACHE_TTL_SECONDS    Cache entry lifetime (default: 604800)")
	fmt.Println("  ZIYOU_CATALOG              Catalog provider: rawg or igdb (default: rawg)")
	fmt.Println("  ZIYOU_PORT                 HTTP port (default: 8000)")
}
