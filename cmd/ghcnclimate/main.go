package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/ghcnclimate/internal/archive"
	"github.com/lox/ghcnclimate/internal/cache"
	"github.com/lox/ghcnclimate/internal/config"
	"github.com/lox/ghcnclimate/internal/pipeline"
	"github.com/lox/ghcnclimate/internal/store"
)

const derivedDB = "_derived.db"

type Globals struct {
	EnvFile     kongdotenv.ENVFileConfig `name:"env-file" help:"Load environment variables from a .env file." optional:""`
	CacheDir    string                   `name:"cache-dir" help:"Directory holding downloaded archives and the derived-table cache." default:"./_data_cache" env:"GHCN_CACHE_DIR" type:"path"`
	ForceFetch  bool                     `name:"force-fetch" help:"Refetch archives and rebuild derived tables even when cached."`
	MetricsFile string                   `name:"metrics-file" help:"Write Prometheus metrics in textfile format on exit." type:"path"`

	Log     config.Log     `embed:""`
	Archive config.Archive `embed:""`
}

type CLI struct {
	Globals

	Candidates CandidatesCmd `cmd:"" help:"List stations near a point with coverage of the year range."`
	Summary    SummaryCmd    `cmd:"" help:"Write a station's daily precipitation and temperature summary."`
	HotDays    HotDaysCmd    `cmd:"" name:"hot-days" help:"Count days per year crossing a threshold."`
	Monthly    MonthlyCmd    `cmd:"" help:"Average a station's summary by calendar month."`
	Compare    CompareCmd    `cmd:"" help:"Compare monthly mean temperatures of stations against a base station."`
	Invalidate InvalidateCmd `cmd:"" help:"Drop cached archives or decoded tables."`
}

// runtime is what every subcommand needs once flags are parsed.
type runtime struct {
	pipeline *pipeline.Pipeline
	store    *store.Store
}

func (g *Globals) open() (*runtime, error) {
	logger := slog.Default()

	c, err := cache.New(g.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	transport, err := g.Archive.NewTransport()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(c.Dir(), derivedDB), logger)
	if err != nil {
		return nil, fmt.Errorf("open derived store: %w", err)
	}

	opts := append(g.Archive.FetcherOptions(), archive.WithLogger(logger))
	fetcher := archive.NewFetcher(c, transport, opts...)
	p := pipeline.New(fetcher, c, st,
		pipeline.WithForce(g.ForceFetch),
		pipeline.WithLogger(logger),
	)
	return &runtime{pipeline: p, store: st}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ghcnclimate"),
		kong.Description("Find GHCN-Daily stations and summarise their observations."),
		kong.UsageOnError(),
	)

	logger, err := cli.Log.NewLogger(os.Stderr)
	kctx.FatalIfErrorf(err)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err = kctx.Run(&cli.Globals)

	if cli.MetricsFile != "" {
		if merr := prometheus.WriteToTextfile(cli.MetricsFile, prometheus.DefaultGatherer); merr != nil {
			logger.Error("write metrics", "path", cli.MetricsFile, "error", merr)
		}
	}

	if err != nil {
		logger.Error("failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
