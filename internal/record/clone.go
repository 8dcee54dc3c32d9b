package record

import "github.com/land-ingest/app/models"

// Clone deep-copies the mutable parts of r: lists, entries, conflicts,
// provenance, optional numbers and the cached view and keys. Nil entries
// are dropped.
// Provenance raw snapshots are shared; they are never mutated.
func Clone(r *models.CanonicalRecord) *models.CanonicalRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Acreage = cloneFloat(r.Acreage)
	out.EstValue = cloneFloat(r.EstValue)
	out.Lat = cloneFloat(r.Lat)
	out.Lng = cloneFloat(r.Lng)
	out.Phones = cloneStrings(r.Phones)
	out.Emails = cloneStrings(r.Emails)
	out.Notes = cloneEntries(r.Notes)
	out.History = cloneEntries(r.History)
	out.Extra = models.Extra{Conflicts: cloneConflicts(r.Extra.Conflicts)}
	if r.Extra.LastMergeDetail != nil {
		out.Extra.LastMergeDetail = CloneDetail(r.Extra.LastMergeDetail)
	}
	if r.Provenance != nil {
		out.Provenance = make([]models.Provenance, len(r.Provenance))
		copy(out.Provenance, r.Provenance)
	}
	if r.Normalized != nil {
		view := *r.Normalized
		view.Lat = cloneFloat(view.Lat)
		view.Lng = cloneFloat(view.Lng)
		out.Normalized = &view
	}
	if r.Keys != nil {
		keys := *r.Keys
		out.Keys = &keys
	}
	return &out
}

// CloneDetail copies a match detail including its optional fields.
func CloneDetail(d *models.MatchDetail) *models.MatchDetail {
	if d == nil {
		return nil
	}
	out := *d
	out.DistanceMeters = cloneFloat(d.DistanceMeters)
	if d.OwnerEditDistance != nil {
		n := *d.OwnerEditDistance
		out.OwnerEditDistance = &n
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneEntries(entries []models.Entry) []models.Entry {
	if entries == nil {
		return nil
	}
	out := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, e.Clone())
		}
	}
	return out
}

func cloneConflicts(conflicts map[string][]string) map[string][]string {
	if conflicts == nil {
		return nil
	}
	out := make(map[string][]string, len(conflicts))
	for field, values := range conflicts {
		out[field] = cloneStrings(values)
	}
	return out
}
