package aggregate

import (
	"database/sql"
	"fmt"

	"github.com/lox/ghcnclimate/internal/models"
	"github.com/lox/ghcnclimate/internal/table"
)

// Field selects a DailySummary column.
type Field string

const (
	FieldPrcp Field = "prcp"
	FieldTMin Field = "tmin"
	FieldTMax Field = "tmax"
	FieldTAvg Field = "tavg"
)

func (f Field) Value(r models.DailySummary) (sql.NullFloat64, error) {
	switch f {
	case FieldPrcp:
		return r.Prcp, nil
	case FieldTMin:
		return r.TMin, nil
	case FieldTMax:
		return r.TMax, nil
	case FieldTAvg:
		return r.TAvg, nil
	}
	return sql.NullFloat64{}, fmt.Errorf("unknown field %q", string(f))
}

type Comparator string

const (
	GE Comparator = ">="
	GT Comparator = ">"
	LE Comparator = "<="
	LT Comparator = "<"
	EQ Comparator = "=="
)

func (c Comparator) Compare(v, threshold float64) (bool, error) {
	switch c {
	case GE:
		return v >= threshold, nil
	case GT:
		return v > threshold, nil
	case LE:
		return v <= threshold, nil
	case LT:
		return v < threshold, nil
	case EQ:
		return v == threshold, nil
	}
	return false, fmt.Errorf("unknown comparator %q", string(c))
}

// CountThresholdDays counts, per year, the days where field compares true
// against threshold. Null values are not counted either way. Every year
// present in rows appears in the result, ascending.
func CountThresholdDays(rows []models.DailySummary, field Field, threshold float64, cmp Comparator) ([]models.YearCount, error) {
	if _, err := field.Value(models.DailySummary{}); err != nil {
		return nil, err
	}
	if _, err := cmp.Compare(0, 0); err != nil {
		return nil, err
	}

	years, groups := table.Group(rows, func(r models.DailySummary) int { return r.Year })
	out := make([]models.YearCount, len(years))
	for i, y := range years {
		out[i].Year = y
		for _, r := range groups[y] {
			v, _ := field.Value(r)
			if !v.Valid {
				continue
			}
			if ok, _ := cmp.Compare(v.Float64, threshold); ok {
				out[i].Count++
			}
		}
	}
	return out, nil
}

// MonthlyAverages summarises [minYear, maxYear] by calendar month. Prcp is
// the month's precipitation total averaged over the number of years in the
// window; temperatures are means over the days that have a value.
func MonthlyAverages(rows []models.DailySummary, minYear, maxYear int) ([]models.MonthlyAverage, error) {
	if maxYear < minYear {
		return nil, fmt.Errorf("invalid year range %d-%d", minYear, maxYear)
	}
	numYears := float64(maxYear - minYear + 1)

	var inRange []models.DailySummary
	for _, r := range rows {
		if r.Year >= minYear && r.Year <= maxYear {
			inRange = append(inRange, r)
		}
	}

	months, groups := table.Group(inRange, func(r models.DailySummary) int { return r.Month })
	out := make([]models.MonthlyAverage, len(months))
	for i, m := range months {
		var prcp, tmin, tmax, tavg accumulator
		for _, r := range groups[m] {
			prcp.add(r.Prcp)
			tmin.add(r.TMin)
			tmax.add(r.TMax)
			tavg.add(r.TAvg)
		}
		out[i] = models.MonthlyAverage{
			Month: m,
			Prcp:  prcp.scaledSum(numYears),
			TMin:  tmin.mean(),
			TMax:  tmax.mean(),
			TAvg:  tavg.mean(),
		}
	}
	return out, nil
}

type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(v sql.NullFloat64) {
	if v.Valid {
		a.sum += v.Float64
		a.n++
	}
}

func (a accumulator) mean() sql.NullFloat64 {
	if a.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: a.sum / float64(a.n), Valid: true}
}

func (a accumulator) scaledSum(div float64) sql.NullFloat64 {
	if a.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: a.sum / div, Valid: true}
}

// CompareMonthlyTAvg reports, for every month any compared station has,
// how much warmer (°F) each station's mean tavg is than the base station's.
// A delta is null when either side lacks that month.
func CompareMonthlyTAvg(base []models.MonthlyAverage, others [][]models.MonthlyAverage) ([]models.MonthlyDelta, error) {
	baseIdx, err := table.Index("base months", base, func(m models.MonthlyAverage) int { return m.Month })
	if err != nil {
		return nil, err
	}
	idxs := make([]map[int]models.MonthlyAverage, len(others))
	for i, o := range others {
		idxs[i], err = table.Index(fmt.Sprintf("station %d months", i), o, func(m models.MonthlyAverage) int { return m.Month })
		if err != nil {
			return nil, err
		}
	}

	months := table.UnionKeys(idxs...)
	out := make([]models.MonthlyDelta, len(months))
	for i, m := range months {
		out[i] = models.MonthlyDelta{Month: m, Deltas: make([]sql.NullFloat64, len(others))}
		b, ok := baseIdx[m]
		if !ok || !b.TAvg.Valid {
			continue
		}
		for j, idx := range idxs {
			o, ok := idx[m]
			if !ok || !o.TAvg.Valid {
				continue
			}
			out[i].Deltas[j] = sql.NullFloat64{
				Float64: CelsiusToFahrenheit(o.TAvg.Float64) - CelsiusToFahrenheit(b.TAvg.Float64),
				Valid:   true,
			}
		}
	}
	return out, nil
}

func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }
