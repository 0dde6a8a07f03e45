package geo

import (
	"math"

	"github.com/lox/ghcnclimate/internal/models"
)

const earthRadiusKM = 6371

// DistanceKM returns the haversine great-circle distance between two points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// AnnotateWithDistance pairs each station with its distance from the
// reference point, keeping input order.
func AnnotateWithDistance(stations []models.StationInfo, refLat, refLon float64) []models.Candidate {
	out := make([]models.Candidate, len(stations))
	for i, st := range stations {
		out[i] = models.Candidate{
			StationInfo: st,
			DistanceKM:  DistanceKM(refLat, refLon, st.Latitude, st.Longitude),
		}
	}
	return out
}

// FilterCandidates keeps stations within radiusKM whose coverage window
// contains [minYear, maxYear], both ends inclusive. Stations with no
// coverage window never match.
func FilterCandidates(cands []models.Candidate, radiusKM float64, minYear, maxYear int) []models.Candidate {
	var out []models.Candidate
	for _, c := range cands {
		if c.DistanceKM > radiusKM {
			continue
		}
		if !c.FirstYear.Valid || !c.LastYear.Valid {
			continue
		}
		if c.FirstYear.Int64 <= int64(minYear) && c.LastYear.Int64 >= int64(maxYear) {
			out = append(out, c)
		}
	}
	return out
}

// FilterByState keeps stations whose state code matches; an empty state
// keeps everything.
func FilterByState(cands []models.Candidate, state string) []models.Candidate {
	if state == "" {
		return cands
	}
	var out []models.Candidate
	for _, c := range cands {
		if c.State.Valid && c.State.String == state {
			out = append(out, c)
		}
	}
	return out
}
