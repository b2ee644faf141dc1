// Package export renders recommended games as CSV, JSON or plain text.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ryanm101/ziyou/internal/catalog"
)

// Format defines output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatTXT  Format = "txt"
)

// ErrUnsupportedFormat is returned when requesting an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatTXT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Result is the JSON export document.
type Result struct {
	Count int            `json:"count"`
	Games []catalog.Game `json:"games"`
}

// Export renders games in the requested format, preserving their order.
func Export(games []catalog.Game, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return toCSV(games)
	case FormatJSON:
		if games == nil {
			games = []catalog.Game{}
		}
		return json.MarshalIndent(Result{Count: len(games), Games: games}, "", "  ")
	case FormatTXT:
		return toTXT(games), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var csvHeader = []string{
	"name", "name_en", "release_year", "genres", "platforms", "metacritic",
	"rating", "playtime", "developer", "publisher", "stores", "recommend_reason",
}

func toCSV(games []catalog.Game) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, g := range games {
		stores := make([]string, 0, len(g.Stores))
		for _, s := range g.Stores {
			stores = append(stores, s.Name+"="+s.URL)
		}
		row := []string{
			g.Name,
			g.NameEN,
			optInt(g.ReleaseYear),
			strings.Join(g.Genres, "|"),
			strings.Join(g.Platforms, "|"),
			optInt(g.Metacritic),
			optFloat(g.Rating),
			g.Playtime,
			g.Developer,
			g.Publisher,
			strings.Join(stores, "|"),
			g.RecommendReason,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// toTXT writes one "name (name_en)" line per game.
func toTXT(games []catalog.Game) []byte {
	var buf bytes.Buffer
	for _, g := range games {
		buf.WriteString(g.Name)
		if g.NameEN != "" && g.NameEN != g.Name {
			buf.WriteString(" (" + g.NameEN + ")")
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
