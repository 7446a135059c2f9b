// Package reconcile implements the cross-source reconciliation engine: it
// normalizes raw provider records into one canonical schema, decides which
// records denote the same physical venue, and merges each group into a single
// canonical place while preserving provenance to every contributing source.
package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/calmcompass/places-cli/internal/model"
)

// decoder maps one provider's payload shape onto the canonical attribute set.
// The envelope fields (source, source id, city, category, collected_at) are
// filled in by Normalize.
type decoder func(payload map[string]any) model.NormalizedPlace

// decoders is the per-provider field mapping table. Adding a provider means
// adding an entry here; nothing downstream knows provider shapes.
var decoders = map[model.Source]decoder{
	model.SourceYelp:   decodeYelp,
	model.SourceGoogle: decodeGoogle,
}

var titleCaser = cases.Title(language.AmericanEnglish)
var titleKeepCaser = cases.Title(language.AmericanEnglish, cases.NoLower)

// Normalize maps a raw provider record into the canonical record shape. It is
// a pure function of its input. It fails with *ValidationError when the
// record has no usable name or no coordinates.
func Normalize(raw model.RawPlace) (model.NormalizedPlace, error) {
	dec, ok := decoders[raw.Source]
	if !ok {
		return model.NormalizedPlace{}, &ValidationError{
			Source: string(raw.Source), SourceID: raw.SourceID,
			Reason: "unknown source",
		}
	}

	n := dec(raw.Payload)
	n.Source = raw.Source
	n.SourceID = raw.SourceID
	n.CitySlug = raw.CitySlug
	n.Category = raw.Category
	n.CollectedAt = raw.CollectedAt

	n.Name = cleanName(n.Name)
	if n.Name == "" {
		return model.NormalizedPlace{}, &ValidationError{
			Source: string(raw.Source), SourceID: raw.SourceID,
			Reason: "missing name",
		}
	}
	if n.Coords == nil {
		return model.NormalizedPlace{}, &ValidationError{
			Source: string(raw.Source), SourceID: raw.SourceID,
			Reason: "missing coordinates",
		}
	}

	n.Phone = normalizePhone(n.Phone)
	if n.Rating != nil {
		r := clamp(*n.Rating, 0, 5)
		n.Rating = &r
	}
	if n.ReviewCount != nil && *n.ReviewCount < 0 {
		zero := 0
		n.ReviewCount = &zero
	}

	return n, nil
}

// cleanName trims and title-cases a venue name. All-caps input is fully
// recased; otherwise existing interior capitalization is preserved so names
// like "SeaTac Float Spa" survive.
func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if name == strings.ToUpper(name) {
		return titleCaser.String(strings.ToLower(name))
	}
	return titleKeepCaser.String(name)
}

// normalizePhone strips everything but digits, keeping a leading +.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeYelp maps a Yelp Fusion business payload.
func decodeYelp(p map[string]any) model.NormalizedPlace {
	n := model.NormalizedPlace{
		Name:     str(p, "name"),
		Phone:    str(p, "phone"),
		Website:  str(p, "url"),
		IsClosed: boolean(p, "is_closed"),
	}

	if loc := obj(p, "location"); loc != nil {
		if lines := list(loc, "display_address"); len(lines) > 0 {
			parts := make([]string, 0, len(lines))
			for _, l := range lines {
				if s, ok := l.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			n.Address = strings.Join(parts, ", ")
		}
	}

	if c := obj(p, "coordinates"); c != nil {
		if lat, okLat := num(c, "latitude"); okLat {
			if lng, okLng := num(c, "longitude"); okLng && !(lat == 0 && lng == 0) {
				n.Coords = &model.Coordinates{Lat: lat, Lng: lng}
			}
		}
	}

	if r, ok := num(p, "rating"); ok {
		n.Rating = &r
	}
	if rc, ok := num(p, "review_count"); ok {
		c := int(rc)
		n.ReviewCount = &c
	}

	// Yelp reports price as "$".."$$$$".
	if price := str(p, "price"); price != "" {
		n.PriceLevel = strings.Count(price, "$")
	}

	n.Hours = yelpHours(p)

	return n
}

// decodeGoogle maps a Google Places details payload.
func decodeGoogle(p map[string]any) model.NormalizedPlace {
	n := model.NormalizedPlace{
		Name:     str(p, "name"),
		Address:  str(p, "formatted_address"),
		Phone:    str(p, "formatted_phone_number"),
		Website:  str(p, "website"),
		IsClosed: str(p, "business_status") == "CLOSED_PERMANENTLY",
	}
	if n.Phone == "" {
		n.Phone = str(p, "international_phone_number")
	}

	if g := obj(p, "geometry"); g != nil {
		if loc := obj(g, "location"); loc != nil {
			if lat, okLat := num(loc, "lat"); okLat {
				if lng, okLng := num(loc, "lng"); okLng && !(lat == 0 && lng == 0) {
					n.Coords = &model.Coordinates{Lat: lat, Lng: lng}
				}
			}
		}
	}

	if r, ok := num(p, "rating"); ok {
		n.Rating = &r
	}
	if rc, ok := num(p, "user_ratings_total"); ok {
		c := int(rc)
		n.ReviewCount = &c
	}

	// Google price_level is already an ordinal 0-4, 0 meaning free/unknown.
	if pl, ok := num(p, "price_level"); ok {
		n.PriceLevel = int(pl)
	}

	n.Hours = googleHours(p)

	return n
}

// Payload accessors. Payloads come straight from encoding/json, so numbers
// are float64 and nested objects are map[string]any.

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func num(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func obj(m map[string]any, key string) map[string]any {
	o, _ := m[key].(map[string]any)
	return o
}

func list(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}
