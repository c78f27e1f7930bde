// Command nearest ranks the shelters closest to a coordinate.
//
// Usage:
//
//	go run ./cmd/nearest -lat 34.7668 -lng 135.6281 -limit 3
//	go run ./cmd/nearest -lat 34.7668 -lng 135.6281 -file shelters.csv -record-types
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-finder/internal/config"
	"github.com/mr1hm/go-shelter-finder/internal/dataset"
	"github.com/mr1hm/go-shelter-finder/internal/geo"
	"github.com/mr1hm/go-shelter-finder/internal/ingestion"
	"github.com/mr1hm/go-shelter-finder/internal/location"
	"github.com/mr1hm/go-shelter-finder/internal/logging"
	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/nearby"
	"github.com/mr1hm/go-shelter-finder/internal/shelter"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nearest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.Float64("lat", 0, "reference latitude in degrees")
	lng := fs.Float64("lng", 0, "reference longitude in degrees")
	limit := fs.Int("limit", shelter.DefaultLimit, "number of shelters to list")
	file := fs.String("file", "", "shelter CSV to read instead of the bundled table")
	url := fs.String("url", "", "remote shelter CSV to fetch instead of the bundled table")
	recordTypes := fs.Bool("record-types", false, "read hazard types from the type column")
	sep := fs.String("type-sep", "|", "separator between hazard types in the type column")
	timeout := fs.Duration("timeout", 10*time.Second, "overall deadline for the lookup")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !isSet(fs, "lat") || !isSet(fs, "lng") {
		fmt.Fprintln(stderr, "both -lat and -lng are required")
		fs.Usage()
		return 2
	}
	if *limit < 0 {
		fmt.Fprintln(stderr, "-limit must be >= 0")
		return 2
	}
	if *recordTypes && (*sep == "" || *sep == ",") {
		fmt.Fprintln(stderr, "-type-sep must be non-empty and differ from the field delimiter")
		return 2
	}

	var src dataset.Source = dataset.Bundled{}
	switch {
	case *file != "":
		src = dataset.File{Path: *file}
	case *url != "":
		src = dataset.NewHTTP(*url, *timeout)
	}

	parser := ingestion.NewParser(config.DatasetConfig{
		RecordTypes:   *recordTypes,
		TypeSeparator: *sep,
		FallbackTypes: models.DefaultHazards,
	})
	provider := location.Static{Coordinate: models.Coordinate{Latitude: *lat, Longitude: *lng}}

	loader := nearby.NewLoader(provider, src, parser,
		nearby.WithLimit(*limit),
		nearby.WithLocationTimeout(*timeout),
		nearby.WithLogger(logging.New(stderr, *logLevel)),
	)
	defer loader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snap, ok := <-loader.Load(ctx)
	if !ok {
		fmt.Fprintln(stderr, "lookup was cancelled")
		return 1
	}
	if snap.State != nearby.StateReady {
		switch {
		case errors.Is(snap.Err, location.ErrPermissionDenied):
			fmt.Fprintln(stderr, "location permission denied")
		case errors.Is(snap.Err, location.ErrUnavailable):
			fmt.Fprintf(stderr, "location unavailable: %v\n", snap.Err)
		default:
			fmt.Fprintf(stderr, "lookup failed: %v\n", snap.Err)
		}
		return 1
	}

	printResults(stdout, snap)
	return 0
}

func printResults(w io.Writer, snap nearby.Snapshot) {
	if len(snap.Results) == 0 {
		fmt.Fprintln(w, "no shelters found")
	}
	for i, s := range snap.Results {
		fmt.Fprintf(w, "%d. %s (%.1f km)\n", i+1, s.Name, geo.Round(*s.Distance, 1))
		fmt.Fprintf(w, "   %s", s.Address)
		if s.Phone != "" {
			fmt.Fprintf(w, "  tel %s", s.Phone)
		}
		fmt.Fprintf(w, "  [%s]\n", joinTypes(s.Types))
	}
	if snap.Skipped > 0 {
		fmt.Fprintf(w, "skipped %d malformed record(s)\n", snap.Skipped)
	}
}

func joinTypes(types []models.HazardType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
