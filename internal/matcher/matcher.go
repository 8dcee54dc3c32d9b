// Package matcher scores a pair of canonical records with four independent
// signals: APN, full address, owner similarity and geo proximity.
package matcher

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/record"
	"github.com/xrash/smetrics"
)

// Signal weights in hundredths, summed as integers so that threshold
// comparisons against 0.70 and 0.90 are exact.
const (
	apnPoints     = 90
	addressPoints = 50
	ownerPoints   = 20
	geoPoints     = 20
	maxPoints     = 100
)

const (
	// OwnerSimilarityThreshold Jaro-Winkler similarity that counts as an owner match
	OwnerSimilarityThreshold = 0.90
	// GeoRadiusMeters maximum distance for a geo match
	GeoRadiusMeters = 15.0
	// EarthRadiusMeters mean Earth radius used by Haversine
	EarthRadiusMeters = 6371000.0

	jaroWinklerPrefix = 4
)

// Details prepares both records, then scores them.
func Details(a, b *models.CanonicalRecord) models.MatchDetail {
	return DetailsPrepared(record.Prepare(a), record.Prepare(b))
}

// Score is Details(a, b).Score.
func Score(a, b *models.CanonicalRecord) float64 {
	return Details(a, b).Score
}

// DetailsPrepared scores two records whose normalized view and keys are
// current. Records missing either are prepared first.
func DetailsPrepared(a, b *models.CanonicalRecord) models.MatchDetail {
	if a == nil || a.Normalized == nil || a.Keys == nil {
		a = record.Prepare(a)
	}
	if b == nil || b.Normalized == nil || b.Keys == nil {
		b = record.Prepare(b)
	}
	ka, kb := *a.Keys, *b.Keys
	va, vb := a.Normalized, b.Normalized

	var detail models.MatchDetail
	points := 0

	if ka.APN != "" && ka.APN == kb.APN {
		points += apnPoints
		detail.APNMatch = true
	}

	if ka.AddrFull != "" && ka.AddrFull == kb.AddrFull {
		points += addressPoints
		detail.AddressMatch = true
	}

	if va.Owner != "" && vb.Owner != "" {
		detail.OwnerSimilarity = JaroWinkler(va.Owner, vb.Owner)
		distance := levenshtein.ComputeDistance(va.Owner, vb.Owner)
		detail.OwnerEditDistance = &distance
		if detail.OwnerSimilarity >= OwnerSimilarityThreshold || InitialsMatch(va.Owner, vb.Owner) {
			points += ownerPoints
			detail.OwnerMatch = true
		}
	}

	if va.Lat != nil && va.Lng != nil && vb.Lat != nil && vb.Lng != nil {
		distance := Haversine(*va.Lat, *va.Lng, *vb.Lat, *vb.Lng)
		detail.DistanceMeters = &distance
		if distance <= GeoRadiusMeters {
			points += geoPoints
			detail.GeoMatch = true
		}
	}

	if va.Zip != "" && vb.Zip != "" && va.Zip != vb.Zip {
		detail.ZipMismatch = true
	}

	if points > maxPoints {
		points = maxPoints
	}
	detail.Score = float64(points) / 100
	return detail
}

// JaroWinkler similarity with a prefix bonus over at most four characters
// and no boost threshold. Empty input on either side yields 0, and so does
// a pair whose longer side is a single character (the match window is
// negative). The pair is ordered before scoring so the result is symmetric.
func JaroWinkler(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	if max(utf8.RuneCountInString(a), utf8.RuneCountInString(b)) < 2 {
		return 0
	}
	if b < a {
		a, b = b, a
	}
	return math.Min(1, smetrics.JaroWinkler(a, b, 0, jaroWinklerPrefix))
}

// InitialsMatch reports whether both names have the same non-empty
// sequence of word initials ("john a smith" / "jas").
func InitialsMatch(a, b string) bool {
	ia, ib := initials(a), initials(b)
	return ia != "" && ia == ib
}

func initials(s string) string {
	var sb strings.Builder
	for _, word := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(word)
		sb.WriteRune(r)
	}
	return sb.String()
}

// Haversine great-circle distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	// fixed argument order keeps the result symmetric bit for bit
	if lat2 < lat1 || (lat2 == lat1 && lng2 < lng1) {
		lat1, lng1, lat2, lng2 = lat2, lng2, lat1, lng1
	}
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLng/2), 2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
