// Package ghcn knows the GHCN-Daily record formats: the fixed-width station
// directory and inventory, and the by-station CSV observation archives.
//
// Format reference: https://docs.opendata.aws/noaa-ghcn-pds/readme.html
package ghcn

import (
	"errors"
	"fmt"
	"io"

	"github.com/lox/ghcnclimate/internal/fixedwidth"
	"github.com/lox/ghcnclimate/internal/models"
)

// DecodeError is shared with the fixed-width decoder so callers can match
// either format with a single errors.As.
type DecodeError = fixedwidth.DecodeError

var errOutOfRange = errors.New("out of range")

// ghcnd-stations.txt, columns as published (1-based, inclusive).
var stationLayout = fixedwidth.MustLayout(
	fixedwidth.Published("station_id", 1, 11),
	fixedwidth.Published("lat", 13, 20),
	fixedwidth.Published("lon", 22, 30),
	fixedwidth.Published("elev", 32, 37),
	fixedwidth.Published("state", 39, 40),
	fixedwidth.Published("station_name", 42, 71),
	fixedwidth.Published("gsn_flag", 73, 75),
	fixedwidth.Published("hcn_crn", 77, 79),
	fixedwidth.Published("wmo_id", 81, 85),
)

// DecodeStations parses the station directory. Lines missing the id or
// coordinates are skipped and counted; coordinates that are present but
// malformed or out of range fail the whole file.
func DecodeStations(r io.Reader) ([]models.Station, int, error) {
	rows, err := stationLayout.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode stations: %w", err)
	}

	stations := make([]models.Station, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if !row.Has("station_id") || !row.Has("lat") || !row.Has("lon") {
			skipped++
			continue
		}
		lat, err := row.Float("lat")
		if err != nil {
			return nil, skipped, err
		}
		lon, err := row.Float("lon")
		if err != nil {
			return nil, skipped, err
		}
		if lat.Float64 < -90 || lat.Float64 > 90 {
			return nil, skipped, &DecodeError{Line: row.Line, Field: "lat", Value: row.String("lat").String, Err: errOutOfRange}
		}
		if lon.Float64 < -180 || lon.Float64 > 180 {
			return nil, skipped, &DecodeError{Line: row.Line, Field: "lon", Value: row.String("lon").String, Err: errOutOfRange}
		}
		elev, err := row.Float("elev")
		if err != nil {
			return nil, skipped, err
		}

		stations = append(stations, models.Station{
			StationID: row.String("station_id").String,
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
			Elevation: elev,
			State:     row.String("state"),
			Name:      row.String("station_name"),
			GSNFlag:   row.String("gsn_flag"),
			HCNCRN:    row.String("hcn_crn"),
			WMOID:     row.String("wmo_id"),
		})
	}
	return stations, skipped, nil
}
