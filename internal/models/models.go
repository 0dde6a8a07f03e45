package models

import (
	"database/sql"
)

// Element codes used by the summaries.
const (
	ElementPrcp = "PRCP"
	ElementTMin = "TMIN"
	ElementTMax = "TMAX"
	ElementSnow = "SNOW"
)

// Station is one line of ghcnd-stations.txt.
type Station struct {
	StationID string          `db:"station_id"`
	Latitude  float64         `db:"lat"`
	Longitude float64         `db:"lon"`
	Elevation sql.NullFloat64 `db:"elev"`
	State     sql.NullString  `db:"state"`
	Name      sql.NullString  `db:"station_name"`
	GSNFlag   sql.NullString  `db:"gsn_flag"`
	HCNCRN    sql.NullString  `db:"hcn_crn"`
	WMOID     sql.NullString  `db:"wmo_id"`
}

// Inventory is one line of ghcnd-inventory.txt: the coverage window of one
// element at one station.
type Inventory struct {
	StationID string
	Latitude  float64
	Longitude float64
	Element   string
	FirstYear int
	LastYear  int
}

// StationInfo is a station joined with the coverage window of a single
// element. FirstYear/LastYear are null when the station never reported it.
type StationInfo struct {
	Station
	FirstYear sql.NullInt64 `db:"first_year"`
	LastYear  sql.NullInt64 `db:"last_year"`
}

type Candidate struct {
	StationInfo
	DistanceKM float64
}

// RawObservation is one row of a by_station archive. Value is in archive
// units: tenths of mm for PRCP, tenths of °C for TMIN/TMAX.
type RawObservation struct {
	StationID string         `db:"station_id"`
	Date      int            `db:"ymd"`
	Element   string         `db:"element"`
	Value     int            `db:"value"`
	MFlag     sql.NullString `db:"m_flag"`
	QFlag     sql.NullString `db:"q_flag"`
	SFlag     sql.NullString `db:"s_flag"`
	ObsTime   sql.NullString `db:"obs_time"`
}

type DailySummary struct {
	Date  int
	Year  int
	Month int
	Day   int
	Prcp  sql.NullFloat64 // inches
	TMin  sql.NullFloat64 // °C
	TMax  sql.NullFloat64 // °C
	TAvg  sql.NullFloat64 // °C
}

type YearCount struct {
	Year  int
	Count int
}

type MonthlyAverage struct {
	Month int
	Prcp  sql.NullFloat64 // mean monthly total, inches
	TMin  sql.NullFloat64
	TMax  sql.NullFloat64
	TAvg  sql.NullFloat64
}

// MonthlyDelta holds, per month, each compared station's tavg difference
// from the base station in °F, in the order the stations were given.
type MonthlyDelta struct {
	Month  int
	Deltas []sql.NullFloat64
}
