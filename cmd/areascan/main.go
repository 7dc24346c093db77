// Command areascan resolves a neighbourhood name to the subarea and
// community codes the search endpoint understands. The codes go into
// crawl.areas in the config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/config"
	logpkg "github.com/yycdata/mlxsweep/internal/logger"
	"github.com/yycdata/mlxsweep/internal/throttle"
	"github.com/yycdata/mlxsweep/internal/transport/mlx"
)

func main() {
	query := flag.String("q", "", "area name to look up (required)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall lookup deadline")
	asYAML := flag.Bool("yaml", false, "print matches as crawl.areas entries")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: areascan -q <area name>")
		os.Exit(2)
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	limiter := throttle.New(
		time.Duration(cfg.Throttle.BaseMs)*time.Millisecond,
		time.Duration(cfg.Throttle.JitterMs)*time.Millisecond,
		cfg.Throttle.MaxInflight,
	)

	client, err := mlx.NewClient(mlx.Config{
		HomeURL:      cfg.MLX.HomeURL,
		SearchURL:    cfg.MLX.SearchURL,
		TypeaheadURL: cfg.MLX.TypeaheadURL,
		Referer:      cfg.MLX.Referer,
		UserAgent:    cfg.MLX.UserAgent,
		CookieFile:   cfg.MLX.CookieFile,
		Timeout:      time.Duration(cfg.MLX.TimeoutSec) * time.Second,
		MaxRetries:   cfg.MLX.MaxRetries,
	}, limiter, logger)
	if err != nil {
		logger.Fatal("Failed to create MLX client", zap.Error(err))
	}

	if err := client.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap MLX session", zap.Error(err))
	}

	locs, err := client.Typeahead(ctx, *query)
	if err != nil {
		logger.Fatal("Typeahead lookup failed", zap.String("query", *query), zap.Error(err))
	}

	if len(locs.Subareas) == 0 && len(locs.Communities) == 0 {
		fmt.Printf("no matches for %q\n", *query)
		return
	}

	if *asYAML {
		printYAML(locs)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCODE\tNAME\tCONFIDENCE")
	for _, l := range locs.Subareas {
		fmt.Fprintf(w, "SUBAREA\t%s\t%s\t%.2f\n", l.Code, l.Name, l.Confidence)
	}
	for _, l := range locs.Communities {
		fmt.Fprintf(w, "COMMUNITY\t%s\t%s\t%.2f\n", l.Code, l.Name, l.Confidence)
	}
	_ = w.Flush()
}

// printYAML emits matches in the shape crawl.areas expects, ready to paste
// into the config file.
func printYAML(locs mlx.Locations) {
	entry := func(kind string, l mlx.Location) {
		fmt.Printf("- code: %q\n  name: %q\n  kind: %q\n", l.Code, l.Name, kind)
	}
	for _, l := range locs.Subareas {
		entry("SUBAREA", l)
	}
	for _, l := range locs.Communities {
		entry("COMMUNITY", l)
	}
}
