// Package mapper maps rows with arbitrary column headers onto canonical
// property/owner records.
package mapper

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/normalizer"
	"github.com/land-ingest/internal/record"
	"gopkg.in/yaml.v3"
)

//go:embed data/header_aliases.yaml
var headerAliasesYAML []byte

// Canonical fields a header can map to
const (
	FieldOwner        = "owner"
	FieldOwnerFirst   = "ownerFirst"
	FieldOwnerLast    = "ownerLast"
	FieldAddressLine1 = "addressLine1"
	FieldCity         = "city"
	FieldState        = "state"
	FieldZip          = "zip"
	FieldCounty       = "county"
	FieldAPN          = "apn"
	FieldAcreage      = "acreage"
	FieldEstValue     = "estValue"
	FieldLat          = "lat"
	FieldLng          = "lng"
	FieldPhone1       = "phone1"
	FieldPhone2       = "phone2"
	FieldPhone3       = "phone3"
	FieldEmail1       = "email1"
	FieldEmail2       = "email2"
	FieldDNC          = "dnc"
	FieldStreetNumber = "streetNumber"
	FieldStreetName   = "streetName"
	FieldStreetSuffix = "streetSuffix"
	FieldStreetDir    = "streetDir"
)

var (
	phoneFields = []string{FieldPhone1, FieldPhone2, FieldPhone3}
	emailFields = []string{FieldEmail1, FieldEmail2}
)

// RowMapper maps raw rows to prepared canonical records. Safe for
// concurrent use once constructed.
type RowMapper struct {
	index map[string]string // header key → canonical field
}

// New builds the header lookup from the embedded alias table.
func New() (*RowMapper, error) {
	aliases := map[string][]string{}
	if err := yaml.Unmarshal(headerAliasesYAML, &aliases); err != nil {
		return nil, fmt.Errorf("header aliases: %w", err)
	}
	return NewWithAliases(aliases), nil
}

// NewWithAliases builds a mapper from a field → aliases table. When two
// fields claim the same header key the alphabetically first field wins.
func NewWithAliases(aliases map[string][]string) *RowMapper {
	fields := make([]string, 0, len(aliases))
	for field := range aliases {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	index := make(map[string]string)
	for _, field := range fields {
		for _, alias := range aliases[field] {
			key := normalizer.HeaderKey(alias)
			if _, taken := index[key]; key == "" || taken {
				continue
			}
			index[key] = field
		}
	}
	return &RowMapper{index: index}
}

// Field returns the canonical field a header maps to.
func (m *RowMapper) Field(header string) (string, bool) {
	field, ok := m.index[normalizer.HeaderKey(header)]
	return field, ok
}

// MapRows maps every row with the same source label and timestamp.
func (m *RowMapper) MapRows(rows []models.Row, source string, now time.Time) []*models.CanonicalRecord {
	out := make([]*models.CanonicalRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.MapRow(row, source, now))
	}
	return out
}

// MapRow maps one row. Headers are visited in sorted order and the first
// non-empty value per canonical field wins. Unknown headers only survive
// in the provenance snapshot.
func (m *RowMapper) MapRow(row models.Row, source string, now time.Time) *models.CanonicalRecord {
	if source == "" {
		source = record.DefaultSource
	}
	values := m.collect(row)
	text := func(field string) string { return normalizer.Text(values[field]) }

	owner := text(FieldOwner)
	if owner == "" {
		owner = normalizer.JoinNonEmpty(text(FieldOwnerFirst), text(FieldOwnerLast))
	}

	number := text(FieldStreetNumber)
	dir := text(FieldStreetDir)
	name := text(FieldStreetName)
	suffix := text(FieldStreetSuffix)

	line := text(FieldAddressLine1)
	if line == "" {
		line = normalizer.JoinNonEmpty(number, dir, name, suffix)
	}
	street := normalizer.ParseStreet(line)

	streetDir := street.Direction
	if dir != "" {
		streetDir = normalizer.Direction(dir)
	}
	streetSuffix := street.Suffix
	if suffix != "" {
		streetSuffix = normalizer.Suffix(suffix)
	}
	if number == "" {
		number = street.House
	}
	if name == "" {
		name = street.StreetName
	}

	rec := &models.CanonicalRecord{
		Source: source,
		Owner:  owner,
		Address: models.Address{
			Line1:        line,
			City:         text(FieldCity),
			State:        normalizer.State(text(FieldState)),
			Zip:          normalizer.ZipStored(text(FieldZip)),
			StreetNumber: number,
			StreetName:   name,
			StreetSuffix: normalizer.TitleCase(streetSuffix),
			StreetDir:    strings.ToUpper(streetDir),
		},
		County:   text(FieldCounty),
		APN:      normalizer.APN(text(FieldAPN)),
		Acreage:  normalizer.ParseNumber(text(FieldAcreage)),
		EstValue: normalizer.ParseNumber(text(FieldEstValue)),
		Lat:      normalizer.ParseNumber(text(FieldLat)),
		Lng:      normalizer.ParseNumber(text(FieldLng)),
		Phones:   collectAll(values, phoneFields, normalizer.Phone),
		Emails:   collectAll(values, emailFields, normalizer.Email),
		DNC:      normalizer.Flag(text(FieldDNC)),
		Notes:    []models.Entry{},
		History:  []models.Entry{},
		Extra:    models.Extra{Conflicts: map[string][]string{}},
		Provenance: []models.Provenance{{
			Source:     source,
			ImportedAt: now,
			Raw:        snapshot(row),
		}},
	}
	return record.PrepareAt(rec, now)
}

func (m *RowMapper) collect(row models.Row) map[string]any {
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	values := make(map[string]any)
	for _, h := range headers {
		field, ok := m.Field(h)
		if !ok {
			continue
		}
		if _, seen := values[field]; seen {
			continue
		}
		if len(normalizer.Values(row[h])) == 0 {
			continue
		}
		values[field] = row[h]
	}
	return values
}

func collectAll(values map[string]any, fields []string, fn func(string) string) []string {
	var out []string
	for _, field := range fields {
		for _, v := range normalizer.Values(values[field]) {
			out = append(out, fn(v))
		}
	}
	return normalizer.Dedupe(out)
}

func snapshot(row models.Row) models.Row {
	out := make(models.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
