package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Row one decoded spreadsheet/CSV row, header → value
type Row map[string]any

// Entry free-form note or history event
type Entry map[string]any

// UnmarshalJSON accepts either an object or a bare string (stored as {"note": s}).
// null leaves e nil; record preparation drops nil entries.
func (e *Entry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = nil
		return nil
	}
	var note string
	if err := json.Unmarshal(data, &note); err == nil {
		*e = Entry{"type": "Note", "note": note}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*e = Entry(m)
	return nil
}

// Clone shallow copy
func (e Entry) Clone() Entry {
	if e == nil {
		return nil
	}
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Address situs address of a parcel
type Address struct {
	Line1        string `json:"line1"`
	City         string `json:"city"`
	State        string `json:"state"`        // 2-letter, uppercase
	Zip          string `json:"zip"`          // digits only, up to 10 (ZIP+4)
	StreetNumber string `json:"streetNumber"` // house number
	StreetName   string `json:"streetName"`
	StreetSuffix string `json:"streetSuffix"` // title-cased full form ("Drive")
	StreetDir    string `json:"streetDir"`    // uppercase abbreviation ("NE")
}

// Provenance one import event that contributed to a record
type Provenance struct {
	Source     string    `json:"source"`
	ImportedAt time.Time `json:"importedAt"`
	Raw        Row       `json:"raw,omitempty"` // snapshot of the source row
}

// Extra bookkeeping that is not part of the property facts
type Extra struct {
	Conflicts       map[string][]string `json:"conflicts"`                 // field → rejected alternatives, first-seen order
	LastMergeDetail *MatchDetail        `json:"lastMergeDetail,omitempty"` // detail of the merge that produced this record
}

// CanonicalRecord unified property/owner record
type CanonicalRecord struct {
	ID         string          `json:"id,omitempty"`
	Source     string          `json:"source,omitempty"`
	Owner      string          `json:"owner"`
	Address    Address         `json:"address"`
	County     string          `json:"county"`
	APN        string          `json:"apn"`
	Acreage    *float64        `json:"acreage,omitempty"`
	EstValue   *float64        `json:"estValue,omitempty"`
	Lat        *float64        `json:"lat,omitempty"`
	Lng        *float64        `json:"lng,omitempty"`
	Phones     []string        `json:"phones"`
	Emails     []string        `json:"emails"`
	DNC        bool            `json:"dnc"`
	Notes      []Entry         `json:"notes"`
	History    []Entry         `json:"history"`
	Extra      Extra           `json:"extra"`
	Provenance []Provenance    `json:"_provenance"`
	Normalized *NormalizedView `json:"_normalized,omitempty"` // derived, recomputed on every preparation
	Keys       *MatchKeys      `json:"_keys,omitempty"`       // derived from Normalized
}

// NormalizedView comparable forms of the record fields
type NormalizedView struct {
	Owner        string   `json:"owner"`
	County       string   `json:"county"`
	APN          string   `json:"apn"`
	StreetCore   string   `json:"streetCore"`
	StreetNumber string   `json:"streetNumber"`
	StreetName   string   `json:"streetName"`
	StreetSuffix string   `json:"streetSuffix"`
	Direction    string   `json:"direction"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Zip          string   `json:"zip"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

// MatchKeys blocking keys, empty string when the inputs are incomplete
type MatchKeys struct {
	APN           string `json:"kAPN"`
	AddrFull      string `json:"kAddrFull"`
	OwnerAddrLite string `json:"kOwnerAddrLite"`
}

// Any true when at least one key is present
func (k MatchKeys) Any() bool {
	return k.APN != "" || k.AddrFull != "" || k.OwnerAddrLite != ""
}

// Primary first non-empty key in APN, address, owner-address order
func (k MatchKeys) Primary() string {
	switch {
	case k.APN != "":
		return k.APN
	case k.AddrFull != "":
		return k.AddrFull
	default:
		return k.OwnerAddrLite
	}
}

// MatchDetail explainable result of a pairwise comparison
type MatchDetail struct {
	Score             float64  `json:"score"`
	APNMatch          bool     `json:"apnMatch"`
	AddressMatch      bool     `json:"addressMatch"`
	OwnerMatch        bool     `json:"ownerMatch"`
	GeoMatch          bool     `json:"geoMatch"`
	ZipMismatch       bool     `json:"zipMismatch"`
	OwnerSimilarity   float64  `json:"ownerSimilarity"`
	OwnerEditDistance *int     `json:"ownerEditDistance,omitempty"` // informational, never scored
	DistanceMeters    *float64 `json:"distanceMeters,omitempty"`
	Reason            string   `json:"reason,omitempty"`
}
