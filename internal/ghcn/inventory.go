package ghcn

import (
	"errors"
	"fmt"
	"io"

	"github.com/lox/ghcnclimate/internal/fixedwidth"
	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/table"
)

// ghcnd-inventory.txt, columns as published (1-based, inclusive).
var inventoryLayout = fixedwidth.MustLayout(
	fixedwidth.Published("station_id", 1, 11),
	fixedwidth.Published("lat", 13, 20),
	fixedwidth.Published("lon", 22, 30),
	fixedwidth.Published("element", 32, 35),
	fixedwidth.Published("first_year", 37, 40),
	fixedwidth.Published("last_year", 42, 45),
)

var errYearOrder = errors.New("first year after last year")

// DecodeInventory parses the station inventory. Lines missing any field
// are skipped and counted.
func DecodeInventory(r io.Reader) ([]models.Inventory, int, error) {
	rows, err := inventoryLayout.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode inventory: %w", err)
	}

	inv := make([]models.Inventory, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		complete := true
		for _, c := range inventoryLayout.Columns() {
			if !row.Has(c.Name) {
				complete = false
				break
			}
		}
		if !complete {
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
		first, err := row.Int("first_year")
		if err != nil {
			return nil, skipped, err
		}
		last, err := row.Int("last_year")
		if err != nil {
			return nil, skipped, err
		}
		if first.Int64 > last.Int64 {
			return nil, skipped, &DecodeError{
				Line:  row.Line,
				Field: "first_year",
				Value: fmt.Sprintf("%d-%d", first.Int64, last.Int64),
				Err:   errYearOrder,
			}
		}

		inv = append(inv, models.Inventory{
			StationID: row.String("station_id").String,
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
			Element:   row.String("element").String,
			FirstYear: int(first.Int64),
			LastYear:  int(last.Int64),
		})
	}
	return inv, skipped, nil
}

// JoinStationInfo attaches each station's coverage window for element.
// Every station is kept; stations without an inventory row for element get
// null years. Duplicate station ids, or more than one inventory row per
// station for element, are reported as *table.ConsistencyError.
func JoinStationInfo(stations []models.Station, inventory []models.Inventory, element string) ([]models.StationInfo, error) {
	if _, err := table.Index("stations", stations, func(s models.Station) string { return s.StationID }); err != nil {
		return nil, err
	}

	var matching []models.Inventory
	for _, inv := range inventory {
		if inv.Element == element {
			matching = append(matching, inv)
		}
	}
	coverage, err := table.Index("inventory "+element, matching, func(i models.Inventory) string { return i.StationID })
	if err != nil {
		return nil, err
	}

	info := make([]models.StationInfo, len(stations))
	for i, st := range stations {
		info[i].Station = st
		if inv, ok := coverage[st.StationID]; ok {
			info[i].FirstYear.Int64, info[i].FirstYear.Valid = int64(inv.FirstYear), true
			info[i].LastYear.Int64, info[i].LastYear.Valid = int64(inv.LastYear), true
		}
	}
	return info, nil
}
