package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// OutputConfig holds global output settings
type OutputConfig struct {
	JSON  bool
	Quiet bool
}

var outputCfg OutputConfig

// parseGlobalFlags extracts --json and --quiet from args, returns remaining args
func parseGlobalFlags(args []string) []string {
	var remaining []string
	for _, arg := range args {
		switch arg {
		case "--json":
			outputCfg.JSON = true
		case "--quiet", "-q":
			outputCfg.Quiet = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining
}

// PrintResult outputs data based on output config
func PrintResult(data any) {
	switch v := data.(type) {
	case string:
		if !outputCfg.JSON {
			fmt.Println(v)
			return
		}
	case map[string]string:
		if !outputCfg.JSON {
			for k, val := range v {
				fmt.Printf("%s: %s\n", k, val)
			}
			return
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// PrintInfo prints informational output unless --quiet is set.
func PrintInfo(format string, args ...any) {
	if outputCfg.Quiet {
		return
	}
	fmt.Printf(format, args...)
}

// PrintError prints to stderr.
func PrintError(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}
