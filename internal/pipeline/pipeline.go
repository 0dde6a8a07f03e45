// Package pipeline ties archive retrieval, decoding and the derived-table
// cache together into the operations the CLI runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lox/ghcnclimate/internal/archive"
	"github.com/lox/ghcnclimate/internal/geo"
	"github.com/lox/ghcnclimate/internal/ghcn"
	"github.com/lox/ghcnclimate/internal/metrics"
	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/store"
	"github.com/lox/ghcnclimate/internal/summary"
)

// Cache keys for the raw archive files.
const (
	StationsKey  = "_stations.txt"
	InventoryKey = "_inventory.txt"
)

func StationKey(stationID string) string {
	return "_station_" + stationID + ".csv.gz"
}

type Fetcher interface {
	Fetch(ctx context.Context, remoteID, cacheKey string, force bool) error
}

type Cache interface {
	Open(key string) (io.ReadCloser, error)
	Invalidate(key string) error
}

type Pipeline struct {
	fetcher Fetcher
	cache   Cache
	store   *store.Store
	logger  *slog.Logger

	// force refetches and rebuilds each artifact once per Pipeline.
	force  bool
	forced map[string]bool
}

type Option func(*Pipeline)

func WithForce(force bool) Option {
	return func(p *Pipeline) { p.force = force }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(f Fetcher, c Cache, s *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher: f,
		cache:   c,
		store:   s,
		logger:  slog.Default(),
		forced:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// forceOnce reports whether the artifact named key should be rebuilt now.
func (p *Pipeline) forceOnce(key string) bool {
	if !p.force || p.forced[key] {
		return false
	}
	p.forced[key] = true
	return true
}

// Query selects candidate stations around a reference point.
type Query struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
	MinYear   int
	MaxYear   int
	Element   string
	State     string
}

func (q Query) Validate() error {
	switch {
	case q.Latitude < -90 || q.Latitude > 90:
		return fmt.Errorf("latitude %v out of range", q.Latitude)
	case q.Longitude < -180 || q.Longitude > 180:
		return fmt.Errorf("longitude %v out of range", q.Longitude)
	case q.RadiusKM < 0:
		return fmt.Errorf("radius %v must not be negative", q.RadiusKM)
	case q.MaxYear < q.MinYear:
		return fmt.Errorf("invalid year range %d-%d", q.MinYear, q.MaxYear)
	case q.Element == "":
		return errors.New("element is required")
	}
	return nil
}

// StationsInfo returns every directory station left-joined with its coverage
// of element, building and materializing the join on first use.
func (p *Pipeline) StationsInfo(ctx context.Context, element string) ([]models.StationInfo, error) {
	force := p.forceOnce("station_info:" + element)
	if force {
		if err := p.store.InvalidateStationInfo(element); err != nil {
			return nil, fmt.Errorf("invalidate station info: %w", err)
		}
	} else {
		info, ok, err := p.store.LoadStationInfo(element)
		if err != nil {
			return nil, fmt.Errorf("load station info: %w", err)
		}
		if ok {
			p.logger.Debug("station info cached", "element", element, "stations", len(info))
			return info, nil
		}
	}

	stations, err := p.stations(ctx)
	if err != nil {
		return nil, err
	}
	inventory, err := p.inventory(ctx)
	if err != nil {
		return nil, err
	}

	info, err := ghcn.JoinStationInfo(stations, inventory, element)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveStationInfo(element, info); err != nil {
		return nil, fmt.Errorf("save station info: %w", err)
	}
	p.logger.Info("built station info", "element", element, "stations", len(info))
	return info, nil
}

func (p *Pipeline) stations(ctx context.Context) ([]models.Station, error) {
	rc, err := p.open(ctx, archive.StationsFile, StationsKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	stations, skipped, err := ghcn.DecodeStations(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", StationsKey, err)
	}
	p.recordDecode("stations", len(stations), skipped)
	return stations, nil
}

func (p *Pipeline) inventory(ctx context.Context) ([]models.Inventory, error) {
	rc, err := p.open(ctx, archive.InventoryFile, InventoryKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	inv, skipped, err := ghcn.DecodeInventory(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", InventoryKey, err)
	}
	p.recordDecode("inventory", len(inv), skipped)
	return inv, nil
}

func (p *Pipeline) recordDecode(kind string, n, skipped int) {
	metrics.RowsDecoded.WithLabelValues(kind).Add(float64(n))
	metrics.RowsSkipped.WithLabelValues(kind).Add(float64(skipped))
	if skipped > 0 {
		p.logger.Warn("skipped short lines", "kind", kind, "skipped", skipped)
	}
}

// open fetches remoteID into key if needed and opens the cached copy.
func (p *Pipeline) open(ctx context.Context, remoteID, key string) (io.ReadCloser, error) {
	if err := p.fetcher.Fetch(ctx, remoteID, key, p.forceOnce(key)); err != nil {
		return nil, err
	}
	return p.cache.Open(key)
}

// Candidates lists stations within q.RadiusKM of the reference point whose
// coverage of q.Element spans [q.MinYear, q.MaxYear].
func (p *Pipeline) Candidates(ctx context.Context, q Query) ([]models.Candidate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	info, err := p.StationsInfo(ctx, q.Element)
	if err != nil {
		return nil, err
	}
	cands := geo.AnnotateWithDistance(info, q.Latitude, q.Longitude)
	cands = geo.FilterCandidates(cands, q.RadiusKM, q.MinYear, q.MaxYear)
	if q.State != "" {
		cands = geo.FilterByState(cands, q.State)
	}
	p.logger.Info("candidates", "element", q.Element, "radius_km", q.RadiusKM, "count", len(cands))
	return cands, nil
}

// DecodeStation returns the station's raw observations in archive order.
// The decoded table is cached separately from the compressed archive.
func (p *Pipeline) DecodeStation(ctx context.Context, stationID string) ([]models.RawObservation, error) {
	if stationID == "" {
		return nil, errors.New("station id is required")
	}

	if p.forceOnce("observations:" + stationID) {
		if err := p.store.InvalidateObservations(stationID); err != nil {
			return nil, fmt.Errorf("invalidate observations: %w", err)
		}
	} else {
		obs, ok, err := p.store.LoadObservations(stationID)
		if err != nil {
			return nil, fmt.Errorf("load observations: %w", err)
		}
		if ok {
			p.logger.Debug("decoded table cached", "station", stationID, "rows", len(obs))
			return obs, nil
		}
	}

	key := StationKey(stationID)
	rc, err := p.open(ctx, archive.StationArchive(stationID), key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	obs, err := ghcn.DecodeObservations(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	metrics.RowsDecoded.WithLabelValues("observations").Add(float64(len(obs)))

	if err := p.store.SaveObservations(stationID, obs); err != nil {
		return nil, fmt.Errorf("save observations: %w", err)
	}
	p.logger.Info("decoded station", "station", stationID, "rows", len(obs))
	return obs, nil
}

// StationSummary decodes the station and builds its daily summary. With
// dropFlagged, observations that failed a quality check are discarded first.
func (p *Pipeline) StationSummary(ctx context.Context, stationID string, dropFlagged bool) ([]models.DailySummary, error) {
	obs, err := p.DecodeStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if dropFlagged {
		n := len(obs)
		obs = summary.DropFlagged(obs)
		p.logger.Debug("dropped flagged observations", "station", stationID, "dropped", n-len(obs))
	}
	return summary.Build(obs)
}

// Invalidate removes a station's cached entries. raw drops the compressed
// archive, derived drops the decoded table; neither implies the other.
func (p *Pipeline) Invalidate(stationID string, raw, derived bool) error {
	if stationID == "" {
		return errors.New("station id is required")
	}
	if derived {
		if err := p.store.InvalidateObservations(stationID); err != nil {
			return fmt.Errorf("invalidate observations: %w", err)
		}
	}
	if raw {
		if err := p.cache.Invalidate(StationKey(stationID)); err != nil {
			return fmt.Errorf("invalidate %s: %w", StationKey(stationID), err)
		}
	}
	p.logger.Info("invalidated", "station", stationID, "raw", raw, "derived", derived)
	return nil
}

// InvalidateDirectory drops the cached station directory, inventory and
// every materialized station info set.
func (p *Pipeline) InvalidateDirectory() error {
	if err := p.store.InvalidateAllStationInfo(); err != nil {
		return fmt.Errorf("invalidate station info: %w", err)
	}
	for _, key := range []string{StationsKey, InventoryKey} {
		if err := p.cache.Invalidate(key); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	p.logger.Info("invalidated directory")
	return nil
}
