package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/ghcnclimate/internal/metrics"
	"github.com/lox/ghcnclimate/internal/models"
)

func (s *Store) HasStationInfo(element string) (bool, error) {
	var n int
	err := s.db.Get(&n, `SELECT row_count FROM station_info_sets WHERE element = ?`, element)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadStationInfo returns the materialized station info for element in the
// order it was saved. ok is false when nothing is materialized.
func (s *Store) LoadStationInfo(element string) (info []models.StationInfo, ok bool, err error) {
	ok, err = s.HasStationInfo(element)
	if err != nil || !ok {
		metrics.DerivedLookupsTotal.WithLabelValues("station_info", "miss").Inc()
		return nil, ok, err
	}
	metrics.DerivedLookupsTotal.WithLabelValues("station_info", "hit").Inc()

	err = s.db.Select(&info, `
		SELECT station_id, lat, lon, elev, state, station_name, gsn_flag, hcn_crn, wmo_id, first_year, last_year
		FROM station_info
		WHERE element = ?
		ORDER BY seq ASC
	`, element)
	if err != nil {
		return nil, false, fmt.Errorf("select station info: %w", err)
	}
	return info, true, nil
}

func (s *Store) SaveStationInfo(element string, info []models.StationInfo) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteStationInfo(tx, element); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`
		INSERT INTO station_info (element, seq, station_id, lat, lon, elev, state, station_name,
			gsn_flag, hcn_crn, wmo_id, first_year, last_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, si := range info {
		if _, err := stmt.Exec(element, i, si.StationID, si.Latitude, si.Longitude, si.Elevation,
			si.State, si.Name, si.GSNFlag, si.HCNCRN, si.WMOID, si.FirstYear, si.LastYear); err != nil {
			return fmt.Errorf("insert station info %s: %w", si.StationID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO station_info_sets (element, row_count, built_at) VALUES (?, ?, ?)
	`, element, len(info), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark built: %w", err)
	}
	return tx.Commit()
}

func (s *Store) InvalidateStationInfo(element string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteStationInfo(tx, element); err != nil {
		return err
	}
	return tx.Commit()
}

// InvalidateAllStationInfo drops every materialized element set. Used when
// the raw station or inventory files are refetched.
func (s *Store) InvalidateAllStationInfo() error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM station_info_sets`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM station_info`); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteStationInfo(tx execer, element string) error {
	if _, err := tx.Exec(`DELETE FROM station_info_sets WHERE element = ?`, element); err != nil {
		return fmt.Errorf("delete station info marker: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM station_info WHERE element = ?`, element); err != nil {
		return fmt.Errorf("delete station info: %w", err)
	}
	return nil
}
