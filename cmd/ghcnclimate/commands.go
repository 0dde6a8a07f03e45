package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lox/ghcnclimate/internal/aggregate"
	"github.com/lox/ghcnclimate/internal/config"
	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/report"
)

type Output struct {
	Path string `name:"output" short:"o" help:"Write CSV here instead of stdout." type:"path"`
}

func (o Output) write(fn func(io.Writer) error) error {
	if o.Path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(o.Path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type CandidatesCmd struct {
	config.Query `embed:""`
	Output       `embed:""`
}

func (c *CandidatesCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	cands, err := rt.pipeline.Candidates(ctx, c.Query.Pipeline())
	if err != nil {
		return err
	}
	return c.write(func(w io.Writer) error { return report.WriteCandidates(w, cands) })
}

type StationArg struct {
	Station     string `arg:"" help:"GHCN station identifier, e.g. USC00047965."`
	DropFlagged bool   `name:"drop-flagged" help:"Discard observations that failed a quality check."`
}

type SummaryCmd struct {
	StationArg `embed:""`
	Output     `embed:""`
}

func (c *SummaryCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	rows, err := rt.pipeline.StationSummary(ctx, c.Station, c.DropFlagged)
	if err != nil {
		return err
	}
	return c.write(func(w io.Writer) error { return report.WriteDailySummary(w, rows) })
}

type HotDaysCmd struct {
	StationArg `embed:""`
	Field      string  `help:"Summary column to test (${enum})." enum:"prcp,tmin,tmax,tavg" default:"tmax"`
	Comparator string  `name:"cmp" help:"Comparison against the threshold (${enum})." enum:">=,>,<=,<,==" default:">="`
	Threshold  float64 `help:"Threshold in summary units (°C or inches)." default:"35"`
	Output     `embed:""`
}

func (c *HotDaysCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	rows, err := rt.pipeline.StationSummary(ctx, c.Station, c.DropFlagged)
	if err != nil {
		return err
	}
	counts, err := aggregate.CountThresholdDays(rows, aggregate.Field(c.Field), c.Threshold, aggregate.Comparator(c.Comparator))
	if err != nil {
		return err
	}
	return c.write(func(w io.Writer) error { return report.WriteYearCounts(w, "days", counts) })
}

type YearRange struct {
	MinYear int `name:"min-year" help:"First year averaged." default:"2015"`
	MaxYear int `name:"max-year" help:"Last year averaged." default:"2022"`
}

type MonthlyCmd struct {
	StationArg `embed:""`
	YearRange  `embed:""`
	Output     `embed:""`
}

func (c *MonthlyCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	rows, err := rt.pipeline.StationSummary(ctx, c.Station, c.DropFlagged)
	if err != nil {
		return err
	}
	avgs, err := aggregate.MonthlyAverages(rows, c.MinYear, c.MaxYear)
	if err != nil {
		return err
	}
	return c.write(func(w io.Writer) error { return report.WriteMonthlyAverages(w, avgs) })
}

type CompareCmd struct {
	Base        string   `arg:"" help:"Station the others are compared against."`
	Stations    []string `arg:"" help:"Stations to compare."`
	DropFlagged bool     `name:"drop-flagged" help:"Discard observations that failed a quality check."`
	YearRange   `embed:""`
	Output      `embed:""`
}

func (c *CompareCmd) Run(ctx context.Context, g *Globals) error {
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	monthly := func(id string) ([]models.MonthlyAverage, error) {
		rows, err := rt.pipeline.StationSummary(ctx, id, c.DropFlagged)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		return aggregate.MonthlyAverages(rows, c.MinYear, c.MaxYear)
	}

	base, err := monthly(c.Base)
	if err != nil {
		return err
	}
	others := make([][]models.MonthlyAverage, len(c.Stations))
	for i, id := range c.Stations {
		if others[i], err = monthly(id); err != nil {
			return err
		}
	}

	deltas, err := aggregate.CompareMonthlyTAvg(base, others)
	if err != nil {
		return err
	}
	return c.write(func(w io.Writer) error { return report.WriteComparison(w, c.Stations, deltas) })
}

type InvalidateCmd struct {
	Stations  []string `arg:"" optional:"" help:"Stations whose cached entries are dropped."`
	Raw       bool     `help:"Drop only the downloaded archive."`
	Derived   bool     `help:"Drop only the decoded table."`
	Directory bool     `help:"Also drop the station directory, inventory and station info."`
}

func (c *InvalidateCmd) Run(g *Globals) error {
	if len(c.Stations) == 0 && !c.Directory {
		return fmt.Errorf("nothing to invalidate: name stations or pass --directory")
	}
	rt, err := g.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	raw, derived := c.Raw, c.Derived
	if !raw && !derived {
		raw, derived = true, true
	}
	for _, id := range c.Stations {
		if err := rt.pipeline.Invalidate(id, raw, derived); err != nil {
			return err
		}
	}
	if c.Directory {
		return rt.pipeline.InvalidateDirectory()
	}
	return nil
}
