package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/ghcnclimate/internal/archive"
	"github.com/lox/ghcnclimate/internal/cache"
	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/store"
	"github.com/lox/ghcnclimate/internal/table"
)

type fakeTransport struct {
	files map[string][]byte
	calls map[string]int
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Retrieve(_ context.Context, remoteID string) (io.ReadCloser, error) {
	t.calls[remoteID]++
	content, ok := t.files[remoteID]
	if !ok {
		return nil, errors.New("550 no such file")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func stationLine(id string, lat, lon float64, state, name string) string {
	return fmt.Sprintf("%-11s %8.4f %9.4f %6.1f %-2s %-30s", id, lat, lon, 10.0, state, name)
}

func inventoryLine(id string, lat, lon float64, elem string, first, last int) string {
	return fmt.Sprintf("%-11s %8.4f %9.4f %-4s %4d %4d", id, lat, lon, elem, first, last)
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const refLat, refLon = 37.1427, -121.9725

func fixtures(t *testing.T) map[string][]byte {
	stations := strings.Join([]string{
		stationLine("USC00047965", 37.0453, -122.0139, "CA", "SANTA CRUZ"),
		stationLine("USC00041967", 38.5000, -121.5000, "CA", "FAR AWAY"),
		stationLine("USC00049999", 37.2000, -121.9000, "CA", "TOO RECENT"),
		stationLine("USC00040001", 37.1500, -121.9700, "CA", "NO TMIN"),
		stationLine("USW00023293", 37.3594, -121.9244, "NV", "WRONG STATE"),
	}, "\n") + "\n"
	inventory := strings.Join([]string{
		inventoryLine("USC00047965", 37.0453, -122.0139, "TMIN", 1950, 2023),
		inventoryLine("USC00047965", 37.0453, -122.0139, "TMAX", 1950, 2023),
		inventoryLine("USC00041967", 38.5000, -121.5000, "TMIN", 1950, 2023),
		inventoryLine("USC00049999", 37.2000, -121.9000, "TMIN", 2018, 2023),
		inventoryLine("USC00040001", 37.1500, -121.9700, "PRCP", 1900, 2023),
		inventoryLine("USW00023293", 37.3594, -121.9244, "TMIN", 1940, 2023),
	}, "\n") + "\n"
	obs := strings.Join([]string{
		"USC00047965,20200101,TMAX,250,,,7,0700",
		"USC00047965,20200101,TMIN,50,,,7,0700",
		"USC00047965,20200101,PRCP,254,,,7,0700",
		"USC00047965,20200102,TMAX,360,,,7,0700",
		"USC00047965,20200102,TMIN,120,,I,7,0700",
		"USC00047965,20200103,PRCP,0,T,,7,",
	}, "\n") + "\n"

	return map[string][]byte{
		archive.StationsFile:                    []byte(stations),
		archive.InventoryFile:                   []byte(inventory),
		archive.StationArchive("USC00047965"):   gzipped(t, obs),
		archive.StationArchive("NOTGZIPPED000"): []byte("plain text"),
	}
}

type harness struct {
	transport *fakeTransport
	cache     *cache.Store
	store     *store.Store
	fetcher   *archive.Fetcher
	logger    *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(db, logger)
	require.NoError(t, s.Migrate())

	tr := &fakeTransport{files: fixtures(t), calls: map[string]int{}}
	f := archive.NewFetcher(c, tr, archive.WithLogger(logger), archive.WithClock(clockwork.NewFakeClock()))
	return &harness{transport: tr, cache: c, store: s, fetcher: f, logger: logger}
}

func (h *harness) pipeline(opts ...Option) *Pipeline {
	opts = append([]Option{WithLogger(h.logger)}, opts...)
	return New(h.fetcher, h.cache, h.store, opts...)
}

func TestStationsInfoLeftJoin(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()

	info, err := p.StationsInfo(context.Background(), models.ElementTMin)
	require.NoError(t, err)
	require.Len(t, info, 5)

	assert.Equal(t, "USC00047965", info[0].StationID)
	assert.Equal(t, int64(1950), info[0].FirstYear.Int64)
	assert.Equal(t, "USC00040001", info[3].StationID)
	assert.False(t, info[3].FirstYear.Valid, "station without TMIN keeps null coverage")

	assert.True(t, h.cache.Exists(StationsKey))
	assert.True(t, h.cache.Exists(InventoryKey))
}

func TestStationsInfoServedFromDerivedCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.pipeline().StationsInfo(ctx, models.ElementTMin)
	require.NoError(t, err)

	// Raw files gone: the materialized join must still be served.
	require.NoError(t, h.cache.Invalidate(StationsKey))
	require.NoError(t, h.cache.Invalidate(InventoryKey))

	second, err := h.pipeline().StationsInfo(ctx, models.ElementTMin)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.transport.calls[archive.StationsFile])
	assert.False(t, h.cache.Exists(StationsKey), "derived hit must not touch the raw cache")
}

func TestStationsInfoDuplicateStation(t *testing.T) {
	h := newHarness(t)
	line := stationLine("USC00047965", 37.0453, -122.0139, "CA", "SANTA CRUZ")
	h.transport.files[archive.StationsFile] = []byte(line + "\n" + line + "\n")

	_, err := h.pipeline().StationsInfo(context.Background(), models.ElementTMin)
	var ce *table.ConsistencyError
	require.ErrorAs(t, err, &ce)

	ok, err := h.store.HasStationInfo(models.ElementTMin)
	require.NoError(t, err)
	assert.False(t, ok, "failed join must not be materialized")
}

func TestCandidates(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()
	q := Query{
		Latitude: refLat, Longitude: refLon, RadiusKM: 50,
		MinYear: 2015, MaxYear: 2022, Element: models.ElementTMin,
	}

	cands, err := p.Candidates(context.Background(), q)
	require.NoError(t, err)
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.StationID
		assert.LessOrEqual(t, c.DistanceKM, 50.0)
	}
	assert.Equal(t, []string{"USC00047965", "USW00023293"}, ids)

	q.State = "CA"
	cands, err = p.Candidates(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "USC00047965", cands[0].StationID)
}

func TestCandidatesInvalidQuery(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline().Candidates(context.Background(), Query{Latitude: 91, Element: "TMIN"})
	assert.Error(t, err)
	_, err = h.pipeline().Candidates(context.Background(), Query{MinYear: 2022, MaxYear: 2015, Element: "TMIN"})
	assert.Error(t, err)
	assert.Empty(t, h.transport.calls, "invalid query must not reach the network")
}

func TestDecodeStationTwoLevelCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	remote := archive.StationArchive("USC00047965")

	obs, err := h.pipeline().DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	require.Len(t, obs, 6)
	assert.Equal(t, 20200101, obs[0].Date)
	assert.Equal(t, "TMAX", obs[0].Element)
	assert.Equal(t, "0700", obs[0].ObsTime.String)
	assert.Equal(t, "T", obs[5].MFlag.String)
	assert.True(t, h.cache.Exists(StationKey("USC00047965")))

	again, err := h.pipeline().DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	assert.Equal(t, obs, again)
	assert.Equal(t, 1, h.transport.calls[remote])

	// Dropping the decoded table re-decodes from the raw cache without a fetch.
	require.NoError(t, h.pipeline().Invalidate("USC00047965", false, true))
	assert.True(t, h.cache.Exists(StationKey("USC00047965")))
	again, err = h.pipeline().DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	assert.Equal(t, obs, again)
	assert.Equal(t, 1, h.transport.calls[remote])

	// Dropping only the raw archive leaves the decoded table in place.
	require.NoError(t, h.pipeline().Invalidate("USC00047965", true, false))
	_, err = h.pipeline().DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	assert.Equal(t, 1, h.transport.calls[remote])
	assert.False(t, h.cache.Exists(StationKey("USC00047965")))
}

func TestDecodeStationForceOncePerRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	remote := archive.StationArchive("USC00047965")

	_, err := h.pipeline().DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)

	p := h.pipeline(WithForce(true))
	_, err = p.DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	_, err = p.DecodeStation(ctx, "USC00047965")
	require.NoError(t, err)
	assert.Equal(t, 2, h.transport.calls[remote], "force refetches once per run")
}

func TestDecodeStationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline().DecodeStation(ctx, "MISSING0000")
	var fe *archive.FetchError
	assert.ErrorAs(t, err, &fe)

	_, err = h.pipeline().DecodeStation(ctx, "NOTGZIPPED000")
	assert.Error(t, err)
	ok, herr := h.store.HasObservations("NOTGZIPPED000")
	require.NoError(t, herr)
	assert.False(t, ok)

	_, err = h.pipeline().DecodeStation(ctx, "")
	assert.Error(t, err)
}

func TestStationSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rows, err := h.pipeline().StationSummary(ctx, "USC00047965", false)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 20200101, rows[0].Date)
	assert.InDelta(t, 1.0, rows[0].Prcp.Float64, 1e-9)
	assert.InDelta(t, 25.0, rows[0].TMax.Float64, 1e-9)
	assert.InDelta(t, 15.0, rows[0].TAvg.Float64, 1e-9)

	assert.False(t, rows[1].Prcp.Valid)
	assert.InDelta(t, 12.0, rows[1].TMin.Float64, 1e-9)

	assert.False(t, rows[2].TMax.Valid)
	assert.Equal(t, 0.0, rows[2].Prcp.Float64)
	assert.True(t, rows[2].Prcp.Valid)

	rows, err = h.pipeline().StationSummary(ctx, "USC00047965", true)
	require.NoError(t, err)
	assert.False(t, rows[1].TMin.Valid, "flagged TMIN is dropped")
	assert.False(t, rows[1].TAvg.Valid)
}

func TestInvalidateDirectory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline().StationsInfo(ctx, models.ElementTMin)
	require.NoError(t, err)
	require.NoError(t, h.pipeline().InvalidateDirectory())

	assert.False(t, h.cache.Exists(StationsKey))
	ok, err := h.store.HasStationInfo(models.ElementTMin)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.pipeline().StationsInfo(ctx, models.ElementTMin)
	require.NoError(t, err)
	assert.Equal(t, 2, h.transport.calls[archive.StationsFile])
}
