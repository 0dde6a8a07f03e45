package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/ghcnclimate/internal/metrics"
	"github.com/lox/ghcnclimate/internal/models"
)

// HasObservations reports whether a decoded table is cached for the station.
func (s *Store) HasObservations(stationID string) (bool, error) {
	var n int
	err := s.db.Get(&n, `SELECT row_count FROM decoded_stations WHERE station_id = ?`, stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadObservations returns the cached decoded table in archive row order.
// ok is false when the station has not been decoded yet.
func (s *Store) LoadObservations(stationID string) (obs []models.RawObservation, ok bool, err error) {
	ok, err = s.HasObservations(stationID)
	if err != nil || !ok {
		metrics.DerivedLookupsTotal.WithLabelValues("observations", "miss").Inc()
		return nil, ok, err
	}
	metrics.DerivedLookupsTotal.WithLabelValues("observations", "hit").Inc()

	err = s.db.Select(&obs, `
		SELECT station_id, ymd, element, value, m_flag, q_flag, s_flag, obs_time
		FROM observations
		WHERE station_id = ?
		ORDER BY seq ASC
	`, stationID)
	if err != nil {
		return nil, false, fmt.Errorf("select observations: %w", err)
	}
	return obs, true, nil
}

// SaveObservations replaces the station's decoded table.
func (s *Store) SaveObservations(stationID string, obs []models.RawObservation) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteObservations(tx, stationID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`
		INSERT INTO observations (station_id, seq, ymd, element, value, m_flag, q_flag, s_flag, obs_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		if _, err := stmt.Exec(stationID, i, o.Date, o.Element, o.Value, o.MFlag, o.QFlag, o.SFlag, o.ObsTime); err != nil {
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO decoded_stations (station_id, row_count, decoded_at) VALUES (?, ?, ?)
	`, stationID, len(obs), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark decoded: %w", err)
	}
	return tx.Commit()
}

// InvalidateObservations drops the station's decoded table, if any.
func (s *Store) InvalidateObservations(stationID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteObservations(tx, stationID); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func deleteObservations(tx execer, stationID string) error {
	if _, err := tx.Exec(`DELETE FROM decoded_stations WHERE station_id = ?`, stationID); err != nil {
		return fmt.Errorf("delete decoded marker: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM observations WHERE station_id = ?`, stationID); err != nil {
		return fmt.Errorf("delete observations: %w", err)
	}
	return nil
}
