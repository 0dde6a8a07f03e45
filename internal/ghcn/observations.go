package ghcn

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/lox/ghcnclimate/internal/models"
)

// Column order of the headerless by_station CSV files.
const (
	colStationID = iota
	colDate
	colElement
	colValue
	colMFlag
	colQFlag
	colSFlag
	colObsTime
)

var errMissingField = errors.New("missing field")

// DecodeObservations decompresses a by_station csv.gz archive and parses it.
func DecodeObservations(r io.Reader) ([]models.RawObservation, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	return ParseObservations(gz)
}

// ParseObservations reads uncompressed by_station CSV. The flag and
// observation-time columns stay text; blank or absent ones are null.
// The first four columns are required.
func ParseObservations(r io.Reader) ([]models.RawObservation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out []models.RawObservation
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read observations: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(rec) < colMFlag {
			return nil, &DecodeError{Line: line, Field: "value", Err: errMissingField}
		}
		date, err := strconv.Atoi(rec[colDate])
		if err != nil {
			return nil, &DecodeError{Line: line, Field: "ymd", Value: rec[colDate], Err: err}
		}
		value, err := strconv.Atoi(rec[colValue])
		if err != nil {
			return nil, &DecodeError{Line: line, Field: "value", Value: rec[colValue], Err: err}
		}

		out = append(out, models.RawObservation{
			StationID: rec[colStationID],
			Date:      date,
			Element:   rec[colElement],
			Value:     value,
			MFlag:     optionalField(rec, colMFlag),
			QFlag:     optionalField(rec, colQFlag),
			SFlag:     optionalField(rec, colSFlag),
			ObsTime:   optionalField(rec, colObsTime),
		})
	}
	return out, nil
}

func optionalField(rec []string, i int) sql.NullString {
	if i >= len(rec) || rec[i] == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: rec[i], Valid: true}
}
