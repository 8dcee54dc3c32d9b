package merge

import (
	"math"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/normalizer"
	"github.com/land-ingest/internal/record"
)

// Merge folds incoming into existing and returns a new prepared record.
// Neither input is modified.
//
// Scalar fields keep the existing value when both sides are non-empty and
// differ; the rejected incoming value is appended once to
// Extra.Conflicts[field]. Numeric fields are not conflict tracked.
func Merge(existing, incoming *models.CanonicalRecord, detail *models.MatchDetail, now time.Time) *models.CanonicalRecord {
	left := record.PrepareAt(existing, now)
	right := record.PrepareAt(incoming, now)

	out := record.Clone(left)
	conflicts := out.Extra.Conflicts
	prefer := func(a, b, field string) string {
		switch {
		case a == "":
			return b
		case b == "" || a == b:
			return a
		}
		if !contains(conflicts[field], b) {
			conflicts[field] = append(conflicts[field], b)
		}
		return a
	}

	out.Owner = prefer(left.Owner, right.Owner, "owner")
	out.County = prefer(left.County, right.County, "county")
	out.APN = prefer(left.APN, right.APN, "apn")

	la, ra := left.Address, right.Address
	out.Address = models.Address{
		Line1:        prefer(la.Line1, ra.Line1, "address.line1"),
		City:         prefer(la.City, ra.City, "address.city"),
		State:        prefer(la.State, ra.State, "address.state"),
		Zip:          prefer(la.Zip, ra.Zip, "address.zip"),
		StreetNumber: prefer(la.StreetNumber, ra.StreetNumber, "address.streetNumber"),
		StreetName:   prefer(la.StreetName, ra.StreetName, "address.streetName"),
		StreetSuffix: prefer(la.StreetSuffix, ra.StreetSuffix, "address.streetSuffix"),
		StreetDir:    prefer(la.StreetDir, ra.StreetDir, "address.streetDir"),
	}

	out.Acreage = finiteOr(left.Acreage, right.Acreage)
	out.EstValue = finiteOr(left.EstValue, right.EstValue)
	out.Lat = finiteOr(left.Lat, right.Lat)
	out.Lng = finiteOr(left.Lng, right.Lng)

	out.Phones = union(left.Phones, right.Phones, normalizer.Phone)
	out.Emails = union(left.Emails, right.Emails, normalizer.Email)
	out.DNC = left.DNC || right.DNC

	out.Notes = concatEntries(left.Notes, right.Notes)
	out.History = concatEntries(left.History, right.History)

	provenance := make([]models.Provenance, 0, len(left.Provenance)+len(right.Provenance))
	provenance = append(provenance, left.Provenance...)
	for _, p := range right.Provenance {
		if p.ImportedAt.IsZero() {
			p.ImportedAt = now
		}
		provenance = append(provenance, p)
	}
	out.Provenance = provenance

	if detail != nil {
		out.Extra.LastMergeDetail = record.CloneDetail(detail)
	}

	return record.PrepareAt(out, now)
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func finiteOr(a, b *float64) *float64 {
	pick := b
	if a != nil && !math.IsNaN(*a) && !math.IsInf(*a, 0) {
		pick = a
	}
	if pick == nil {
		return nil
	}
	v := *pick
	return &v
}

func union(a, b []string, fn func(string) string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		out = append(out, fn(v))
	}
	for _, v := range b {
		out = append(out, fn(v))
	}
	return normalizer.Dedupe(out)
}

func concatEntries(a, b []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(a)+len(b))
	for _, list := range [][]models.Entry{a, b} {
		for _, e := range list {
			if e != nil {
				out = append(out, e.Clone())
			}
		}
	}
	return out
}
