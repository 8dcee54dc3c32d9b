// Package record prepares canonical records for matching: deep clone,
// contact coercion, normalized view and blocking keys.
package record

import (
	"math"
	"strings"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/normalizer"
)

// DefaultSource provenance source when a record carries none
const DefaultSource = "import"

// Prepare prepares r using the wall clock for synthesized provenance.
func Prepare(r *models.CanonicalRecord) *models.CanonicalRecord {
	return PrepareAt(r, time.Now())
}

// PrepareAt returns a deep copy of r with phones and emails normalized and
// de-duplicated, conflicts and provenance guaranteed present, and the
// normalized view and match keys recomputed. r is not modified.
// Preparing a prepared record yields an equal record.
func PrepareAt(r *models.CanonicalRecord, now time.Time) *models.CanonicalRecord {
	out := Clone(r)
	if out == nil {
		out = &models.CanonicalRecord{}
	}

	out.Phones = normalizeAll(out.Phones, normalizer.Phone)
	out.Emails = normalizeAll(out.Emails, normalizer.Email)
	if out.Notes == nil {
		out.Notes = []models.Entry{}
	}
	if out.History == nil {
		out.History = []models.Entry{}
	}
	if out.Extra.Conflicts == nil {
		out.Extra.Conflicts = map[string][]string{}
	}
	if len(out.Provenance) == 0 {
		source := out.Source
		if source == "" {
			source = DefaultSource
		}
		out.Provenance = []models.Provenance{{Source: source, ImportedAt: now}}
	}

	view := ComputeNormalized(out)
	keys := BuildKeys(view)
	out.Normalized = &view
	out.Keys = &keys
	return out
}

// ComputeNormalized derives the comparable view of r's fields.
func ComputeNormalized(r *models.CanonicalRecord) models.NormalizedView {
	addr := r.Address
	line := strings.TrimSpace(addr.Line1)
	number := strings.TrimSpace(addr.StreetNumber)
	dir := strings.TrimSpace(addr.StreetDir)
	name := strings.TrimSpace(addr.StreetName)
	suffix := strings.TrimSpace(addr.StreetSuffix)

	source := line
	if source == "" {
		source = normalizer.JoinNonEmpty(number, dir, name, suffix)
	}
	street := normalizer.ParseStreet(source)

	view := models.NormalizedView{
		Owner:        normalizer.Owner(r.Owner),
		County:       normalizer.County(r.County),
		APN:          normalizer.APN(r.APN),
		StreetCore:   firstNonEmpty(street.Core, strings.ToLower(normalizer.JoinNonEmpty(number, dir, name, suffix))),
		StreetNumber: firstNonEmpty(street.House, strings.ToLower(number)),
		StreetName:   firstNonEmpty(street.StreetName, strings.ToLower(name)),
		StreetSuffix: firstNonEmpty(street.Suffix, strings.ToLower(suffix)),
		Direction:    firstNonEmpty(street.Direction, strings.ToLower(dir)),
		City:         normalizer.City(addr.City),
		State:        normalizer.State(addr.State),
		Zip:          normalizer.Zip(addr.Zip),
		Lat:          finite(r.Lat),
		Lng:          finite(r.Lng),
	}
	view.StreetCore = strings.Join(strings.Fields(view.StreetCore), " ")
	return view
}

// BuildKeys derives the three blocking keys from a normalized view.
func BuildKeys(v models.NormalizedView) models.MatchKeys {
	var k models.MatchKeys
	if v.APN != "" && v.County != "" {
		k.APN = "apn:" + v.APN + "|c:" + v.County
	}
	if v.StreetCore != "" && v.City != "" && v.State != "" && v.Zip != "" {
		k.AddrFull = "a:" + v.StreetCore + "|ct:" + v.City + "|s:" + v.State + "|z:" + v.Zip
	}
	if v.Owner != "" && v.StreetCore != "" && v.City != "" && v.State != "" {
		k.OwnerAddrLite = "o:" + v.Owner + "|a:" + v.StreetCore + "|ct:" + v.City + "|s:" + v.State
	}
	return k
}

// Key returns the cached keys of a prepared record, computing them otherwise.
func Key(r *models.CanonicalRecord) models.MatchKeys {
	if r == nil {
		return models.MatchKeys{}
	}
	if r.Keys != nil {
		return *r.Keys
	}
	return BuildKeys(ComputeNormalized(r))
}

// RecordKey is the record's identity: the first non-empty of kAPN,
// kAddrFull, kOwnerAddrLite.
func RecordKey(r *models.CanonicalRecord) string {
	return Key(r).Primary()
}

func normalizeAll(values []string, fn func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fn(v))
	}
	return normalizer.Dedupe(out)
}

func finite(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	c := *v
	return &c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
