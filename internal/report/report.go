// Package report renders pipeline results as comma-delimited tables with a
// header row. Null values are written as empty fields.
package report

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lox/ghcnclimate/internal/models"
)

func WriteCandidates(w io.Writer, cands []models.Candidate) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"station_id", "lat", "lon", "elev", "state", "station_name",
		"gsn_flag", "hcn_crn", "wmo_id", "first_year", "last_year", "dist",
	})
	for _, c := range cands {
		cw.Write([]string{
			c.StationID,
			formatFloat(c.Latitude),
			formatFloat(c.Longitude),
			nullFloat(c.Elevation),
			c.State.String,
			c.Name.String,
			c.GSNFlag.String,
			c.HCNCRN.String,
			c.WMOID.String,
			nullInt(c.FirstYear),
			nullInt(c.LastYear),
			strconv.FormatFloat(c.DistanceKM, 'f', 1, 64),
		})
	}
	cw.Flush()
	return cw.Error()
}

func WriteDailySummary(w io.Writer, rows []models.DailySummary) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"ymd", "year", "month", "day", "prcp", "tmin", "tmax", "tavg"})
	for _, r := range rows {
		cw.Write([]string{
			strconv.Itoa(r.Date),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Day),
			nullFloat(r.Prcp),
			nullFloat(r.TMin),
			nullFloat(r.TMax),
			nullFloat(r.TAvg),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteYearCounts writes one row per year; label names the count column.
func WriteYearCounts(w io.Writer, label string, rows []models.YearCount) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"year", label})
	for _, r := range rows {
		cw.Write([]string{strconv.Itoa(r.Year), strconv.Itoa(r.Count)})
	}
	cw.Flush()
	return cw.Error()
}

func WriteMonthlyAverages(w io.Writer, rows []models.MonthlyAverage) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"month", "prcp", "tmin", "tmax", "tavg"})
	for _, r := range rows {
		cw.Write([]string{
			strconv.Itoa(r.Month),
			rounded(r.Prcp),
			rounded(r.TMin),
			rounded(r.TMax),
			rounded(r.TAvg),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteComparison writes the per-month tavg deltas with one column per
// compared station, in the order given by stationIDs.
func WriteComparison(w io.Writer, stationIDs []string, rows []models.MonthlyDelta) error {
	cw := csv.NewWriter(w)
	cw.Write(append([]string{"month"}, stationIDs...))
	for _, r := range rows {
		if len(r.Deltas) != len(stationIDs) {
			return fmt.Errorf("month %d has %d deltas for %d stations", r.Month, len(r.Deltas), len(stationIDs))
		}
		rec := make([]string, 0, len(r.Deltas)+1)
		rec = append(rec, strconv.Itoa(r.Month))
		for _, d := range r.Deltas {
			rec = append(rec, rounded(d))
		}
		cw.Write(rec)
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func rounded(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', 2, 64)
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
