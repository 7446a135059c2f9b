package reconcile

import (
	"math"

	"github.com/calmcompass/places-cli/internal/model"
)

// MatchConfig holds the similarity thresholds. The defaults are tuned for
// venue deduplication but are deliberately configuration, not invariants.
type MatchConfig struct {
	// MaxDistanceMeters is the hard veto radius: records further apart than
	// this are never the same venue, regardless of name.
	MaxDistanceMeters float64 `yaml:"max_distance_meters" mapstructure:"max_distance_meters"`
	// NameThreshold is the token-set ratio at or above which names alone
	// decide a match.
	NameThreshold float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	// LooseNameThreshold is the weaker name score accepted when the records
	// sit within TightRadiusMeters of each other.
	LooseNameThreshold float64 `yaml:"loose_name_threshold" mapstructure:"loose_name_threshold"`
	// TightRadiusMeters is the proximity required for the loose name rule.
	TightRadiusMeters float64 `yaml:"tight_radius_meters" mapstructure:"tight_radius_meters"`
}

// DefaultMatchConfig returns the default venue-proximity thresholds.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MaxDistanceMeters:  150,
		NameThreshold:      0.85,
		LooseNameThreshold: 0.60,
		TightRadiusMeters:  30,
	}
}

// Matcher decides whether two normalized records denote the same physical
// venue. The decision is symmetric.
type Matcher struct {
	cfg MatchConfig
}

// NewMatcher creates a matcher with the given thresholds.
func NewMatcher(cfg MatchConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// SameVenue applies the decision policy in order, first decisive rule wins:
//
//  1. Distance veto: coordinates more than MaxDistanceMeters apart are never
//     the same venue. Two same-named chain locations across town must not merge.
//  2. Token-set name similarity at or above NameThreshold is a match.
//  3. A weaker name score combined with very tight proximity is a match; this
//     recovers the same storefront listed under abbreviated or renamed titles.
//  4. Otherwise not the same venue.
func (m *Matcher) SameVenue(a, b model.NormalizedPlace) bool {
	dist := math.Inf(1)
	if a.Coords != nil && b.Coords != nil {
		dist = HaversineMeters(a.Coords.Lat, a.Coords.Lng, b.Coords.Lat, b.Coords.Lng)
		if dist > m.cfg.MaxDistanceMeters {
			return false
		}
	}

	score := TokenSetRatio(NormalizeName(a.Name), NormalizeName(b.Name))
	if score >= m.cfg.NameThreshold {
		return true
	}
	if score >= m.cfg.LooseNameThreshold && dist <= m.cfg.TightRadiusMeters {
		return true
	}
	return false
}

const earthRadiusMeters = 6371000

// HaversineMeters returns the great-circle distance between two WGS84 points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1*rad)*math.Cos(lat2*rad)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
