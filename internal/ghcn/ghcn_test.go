package ghcn

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/table"
)

// stationLine renders a directory line in the published fixed-width format.
func stationLine(id string, lat, lon, elev float64, state, name, gsn, hcn, wmo string) string {
	return fmt.Sprintf("%-11s %8.4f %9.4f %6.1f %-2s %-30s %-3s %-3s %-5s",
		id, lat, lon, elev, state, name, gsn, hcn, wmo)
}

func inventoryLine(id string, lat, lon float64, elem string, first, last int) string {
	return fmt.Sprintf("%-11s %8.4f %9.4f %-4s %4d %4d", id, lat, lon, elem, first, last)
}

func TestDecodeStations(t *testing.T) {
	text := strings.Join([]string{
		stationLine("ACW00011604", 17.1167, -61.7833, 10.1, "", "ST JOHNS COOLIDGE FLD", "", "", ""),
		stationLine("USC00047965", 37.0453, -122.0139, 30.5, "CA", "SANTA CRUZ", "GSN", "HCN", "72493"),
		"AE000041196",
	}, "\n")

	stations, skipped, err := DecodeStations(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, stations, 2)

	st := stations[0]
	assert.Equal(t, "ACW00011604", st.StationID)
	assert.Equal(t, 17.1167, st.Latitude)
	assert.Equal(t, -61.7833, st.Longitude)
	assert.Equal(t, 10.1, st.Elevation.Float64)
	assert.False(t, st.State.Valid)
	assert.Equal(t, "ST JOHNS COOLIDGE FLD", st.Name.String)
	assert.False(t, st.WMOID.Valid)

	st = stations[1]
	assert.Equal(t, "CA", st.State.String)
	assert.Equal(t, "SANTA CRUZ", st.Name.String)
	assert.Equal(t, "GSN", st.GSNFlag.String)
	assert.Equal(t, "HCN", st.HCNCRN.String)
	assert.Equal(t, "72493", st.WMOID.String)
}

func TestDecodeStationsShortTrailingFields(t *testing.T) {
	line := fmt.Sprintf("%-11s %8.4f %9.4f %6.1f", "USC00047965", 37.0453, -122.0139, 30.5)
	stations, skipped, err := DecodeStations(strings.NewReader(line + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, stations, 1)
	assert.False(t, stations[0].Name.Valid)
	assert.False(t, stations[0].GSNFlag.Valid)
}

func TestDecodeStationsBadNumericIsFatal(t *testing.T) {
	good := stationLine("ACW00011604", 17.1167, -61.7833, 10.1, "", "ST JOHNS", "", "", "")
	bad := strings.Replace(good, "17.1167", "17.1x67", 1)

	_, _, err := DecodeStations(strings.NewReader(good + "\n" + bad + "\n"))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Line)
	assert.Equal(t, "lat", de.Field)
}

func TestDecodeStationsLatitudeRange(t *testing.T) {
	line := stationLine("XX000000001", 95.0, 0, 1, "", "NOWHERE", "", "", "")
	_, _, err := DecodeStations(strings.NewReader(line))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "lat", de.Field)
}

func TestDecodeInventory(t *testing.T) {
	text := strings.Join([]string{
		inventoryLine("USC00047965", 37.0453, -122.0139, "TMIN", 1893, 2023),
		inventoryLine("USC00047965", 37.0453, -122.0139, "PRCP", 1890, 2024),
		"USC00047965  37.0453 -122.0139 TMAX",
	}, "\n")

	inv, skipped, err := DecodeInventory(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, inv, 2)
	assert.Equal(t, models.Inventory{
		StationID: "USC00047965", Latitude: 37.0453, Longitude: -122.0139,
		Element: "TMIN", FirstYear: 1893, LastYear: 2023,
	}, inv[0])
}

func TestDecodeInventoryYearOrder(t *testing.T) {
	line := inventoryLine("USC00047965", 37.0453, -122.0139, "TMIN", 2020, 2010)
	_, _, err := DecodeInventory(strings.NewReader(line))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, errYearOrder)
}

func TestJoinStationInfo(t *testing.T) {
	stations := []models.Station{{StationID: "A"}, {StationID: "B"}}
	inv := []models.Inventory{
		{StationID: "A", Element: "TMIN", FirstYear: 2000, LastYear: 2020},
		{StationID: "A", Element: "PRCP", FirstYear: 1900, LastYear: 2024},
		{StationID: "B", Element: "PRCP", FirstYear: 1950, LastYear: 2024},
		{StationID: "Z", Element: "TMIN", FirstYear: 1950, LastYear: 2024},
	}

	info, err := JoinStationInfo(stations, inv, "TMIN")
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, int64(2000), info[0].FirstYear.Int64)
	assert.Equal(t, int64(2020), info[0].LastYear.Int64)
	assert.False(t, info[1].FirstYear.Valid, "station without TMIN keeps a row with null years")
	assert.False(t, info[1].LastYear.Valid)
}

func TestJoinStationInfoDuplicates(t *testing.T) {
	var ce *table.ConsistencyError

	_, err := JoinStationInfo([]models.Station{{StationID: "A"}, {StationID: "A"}}, nil, "TMIN")
	require.ErrorAs(t, err, &ce)

	inv := []models.Inventory{
		{StationID: "A", Element: "TMIN", FirstYear: 2000, LastYear: 2020},
		{StationID: "A", Element: "TMIN", FirstYear: 2001, LastYear: 2021},
	}
	_, err = JoinStationInfo([]models.Station{{StationID: "A"}}, inv, "TMIN")
	require.ErrorAs(t, err, &ce)
}

func gzipString(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestDecodeObservations(t *testing.T) {
	csvText := "USC00047965,20150101,TMAX,156,,,7,0800\n" +
		"USC00047965,20150101,PRCP,0,T,,7,\n" +
		"USC00047965,20150102,TMIN,-12,,I,0,\n"

	obs, err := DecodeObservations(bytes.NewReader(gzipString(t, csvText)))
	require.NoError(t, err)
	require.Len(t, obs, 3)

	assert.Equal(t, "USC00047965", obs[0].StationID)
	assert.Equal(t, 20150101, obs[0].Date)
	assert.Equal(t, "TMAX", obs[0].Element)
	assert.Equal(t, 156, obs[0].Value)
	assert.False(t, obs[0].MFlag.Valid)
	assert.Equal(t, "7", obs[0].SFlag.String, "numeric-looking flags stay text")
	assert.Equal(t, "0800", obs[0].ObsTime.String, "leading zeros are preserved")

	assert.Equal(t, "T", obs[1].MFlag.String)
	assert.False(t, obs[1].ObsTime.Valid)

	assert.Equal(t, -12, obs[2].Value)
	assert.Equal(t, "I", obs[2].QFlag.String)
	assert.Equal(t, "0", obs[2].SFlag.String)
}

func TestParseObservationsShortRowPadsFlags(t *testing.T) {
	obs, err := ParseObservations(strings.NewReader("USC00047965,20150101,TMAX,156\n"))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].QFlag.Valid)
	assert.False(t, obs[0].ObsTime.Valid)
}

func TestParseObservationsBadValue(t *testing.T) {
	_, err := ParseObservations(strings.NewReader(
		"USC00047965,20150101,TMAX,156\nUSC00047965,20150102,TMAX,abc\n"))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Line)
	assert.Equal(t, "value", de.Field)
}

func TestParseObservationsMissingValue(t *testing.T) {
	_, err := ParseObservations(strings.NewReader("USC00047965,20150101,TMAX\n"))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestDecodeObservationsNotGzip(t *testing.T) {
	_, err := DecodeObservations(strings.NewReader("plain text"))
	require.Error(t, err)
}
