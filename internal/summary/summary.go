package summary

import (
	"database/sql"

	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/table"
)

const (
	tenthsMMPerInch  = 254.0
	tenthsPerDegreeC = 10.0
)

// Build pivots one station's raw observations into one row per date with
// precipitation (inches), tmin, tmax and tavg (°C). A date reported for any
// of the three elements gets a row; missing elements stay null. tavg is only
// set when both tmin and tmax exist for the date. Rows are ascending by date.
//
// A (date, element) pair reported twice is a *table.ConsistencyError.
func Build(obs []models.RawObservation) ([]models.DailySummary, error) {
	prcp, err := project(obs, models.ElementPrcp, tenthsMMPerInch)
	if err != nil {
		return nil, err
	}
	tmin, err := project(obs, models.ElementTMin, tenthsPerDegreeC)
	if err != nil {
		return nil, err
	}
	tmax, err := project(obs, models.ElementTMax, tenthsPerDegreeC)
	if err != nil {
		return nil, err
	}
	tavg := table.InnerJoin(tmin, tmax, func(lo, hi float64) float64 { return (lo + hi) / 2 })

	dates := table.UnionKeys(prcp, tmin, tmax, tavg)
	rows := make([]models.DailySummary, len(dates))
	for i, ymd := range dates {
		rows[i] = models.DailySummary{
			Date:  ymd,
			Year:  ymd / 10000,
			Month: ymd % 10000 / 100,
			Day:   ymd % 100,
			Prcp:  lookup(prcp, ymd),
			TMin:  lookup(tmin, ymd),
			TMax:  lookup(tmax, ymd),
			TAvg:  lookup(tavg, ymd),
		}
	}
	return rows, nil
}

// project selects one element into a date-keyed series divided by scale.
func project(obs []models.RawObservation, element string, scale float64) (map[int]float64, error) {
	var sel []models.RawObservation
	for _, o := range obs {
		if o.Element == element {
			sel = append(sel, o)
		}
	}
	idx, err := table.Index(element, sel, func(o models.RawObservation) int { return o.Date })
	if err != nil {
		return nil, err
	}
	series := make(map[int]float64, len(idx))
	for ymd, o := range idx {
		series[ymd] = float64(o.Value) / scale
	}
	return series, nil
}

func lookup(series map[int]float64, ymd int) sql.NullFloat64 {
	v, ok := series[ymd]
	return sql.NullFloat64{Float64: v, Valid: ok}
}

// DropFlagged removes observations that failed a quality check (non-empty
// quality flag).
func DropFlagged(obs []models.RawObservation) []models.RawObservation {
	out := make([]models.RawObservation, 0, len(obs))
	for _, o := range obs {
		if !o.QFlag.Valid {
			out = append(out, o)
		}
	}
	return out
}
