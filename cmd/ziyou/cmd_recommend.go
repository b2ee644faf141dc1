package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/suggest"
)

func handleRecommendCommand(ctx context.Context, args []string) {
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

	if outputCfg.JSON {
		PrintResult(map[string][]catalog.Game{"games": games})
		return
	}
	for i, g := range games {
		printGame(i+1, g)
	}
}

// readProfile loads a JSON profile from path, or stdin when path is "-".
func readProfile(path string) (suggest.Profile, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path) //nolint:gosec // Path is supplied by the operator
		if err != nil {
			return suggest.Profile{}, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return suggest.Profile{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return suggest.Profile{}, errors.New("profile is empty")
	}

	var p suggest.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}

func printGame(n int, g catalog.Game) {
	fmt.Printf("%d. %s (%s)\n", n, g.Name, g.NameEN)
	if g.RecommendReason != "" {
		fmt.Printf("   %s\n", g.RecommendReason)
	}
	var meta []string
	if g.ReleaseYear != nil {
		meta = append(meta, fmt.Sprintf("%d", *g.ReleaseYear))
	}
	if len(g.Genres) > 0 {
		meta = append(meta, strings.Join(g.Genres, "/"))
	}
	if g.Metacritic != nil {
		meta = append(meta, fmt.Sprintf("Metacritic %d", *g.Metacritic))
	}
	if g.Playtime != "" {
		meta = append(meta, g.Playtime)
	}
	if len(meta) > 0 {
		fmt.Printf("   %s\n", strings.Join(meta, " · "))
	}
	for _, s := range g.Stores {
		fmt.Printf("   %s: %s\n", s.Name, s.URL)
	}
}
