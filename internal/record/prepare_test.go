package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func sampleRecord() *models.CanonicalRecord {
	return &models.CanonicalRecord{
		Owner: "River Bend, LLC.",
		Address: models.Address{
			Line1: "200 Lake Shore Dr",
			City:  "Madison",
			State: "wi",
			Zip:   "53703-1234",
		},
		County: "Dane County",
		APN:    "0812-345-6789",
		Lat:    f(43.07),
		Lng:    f(-89.38),
		Phones: []string{"(555) 123-4567", "1-555-123-4567", ""},
		Emails: []string{" Info@RiverBend.com", "info@riverbend.com"},
		Notes:  []models.Entry{{"note": "first"}},
	}
}

func TestPrepareAt_NormalizesAndKeys(t *testing.T) {
	p := PrepareAt(sampleRecord(), fixedNow)

	assert.Equal(t, []string{"5551234567"}, p.Phones)
	assert.Equal(t, []string{"info@riverbend.com"}, p.Emails)
	assert.NotNil(t, p.Extra.Conflicts)
	require.Len(t, p.Provenance, 1)
	assert.Equal(t, DefaultSource, p.Provenance[0].Source)
	assert.Equal(t, fixedNow, p.Provenance[0].ImportedAt)

	require.NotNil(t, p.Normalized)
	assert.Equal(t, "river bend llc", p.Normalized.Owner)
	assert.Equal(t, "dane", p.Normalized.County)
	assert.Equal(t, "08123456789", p.Normalized.APN)
	assert.Equal(t, "200 lake shore drive", p.Normalized.StreetCore)
	assert.Equal(t, "drive", p.Normalized.StreetSuffix)
	assert.Equal(t, "madison", p.Normalized.City)
	assert.Equal(t, "WI", p.Normalized.State)
	assert.Equal(t, "53703", p.Normalized.Zip)

	require.NotNil(t, p.Keys)
	assert.Equal(t, "apn:08123456789|c:dane", p.Keys.APN)
	assert.Equal(t, "a:200 lake shore drive|ct:madison|s:WI|z:53703", p.Keys.AddrFull)
	assert.Equal(t, "o:river bend llc|a:200 lake shore drive|ct:madison|s:WI", p.Keys.OwnerAddrLite)
	assert.Equal(t, "apn:08123456789|c:dane", RecordKey(p))
}

func TestPrepareAt_IsIdempotent(t *testing.T) {
	once := PrepareAt(sampleRecord(), fixedNow)
	twice := PrepareAt(once, fixedNow.Add(time.Hour))
	assert.Equal(t, once, twice)
}

func TestPrepareAt_DoesNotAliasInput(t *testing.T) {
	in := sampleRecord()
	p := PrepareAt(in, fixedNow)

	p.Notes[0]["note"] = "changed"
	p.Phones[0] = "0000000000"
	*p.Lat = 0

	assert.Equal(t, "first", in.Notes[0]["note"])
	assert.Equal(t, "(555) 123-4567", in.Phones[0])
	assert.Equal(t, 43.07, *in.Lat)
	assert.Nil(t, in.Normalized)
}

func TestPrepareAt_KeepsExistingProvenance(t *testing.T) {
	in := sampleRecord()
	in.Source = "county-export"
	in.Provenance = []models.Provenance{{Source: "xlsx", ImportedAt: fixedNow.Add(-time.Hour)}}

	p := PrepareAt(in, fixedNow)
	require.Len(t, p.Provenance, 1)
	assert.Equal(t, "xlsx", p.Provenance[0].Source)

	in.Provenance = nil
	p = PrepareAt(in, fixedNow)
	assert.Equal(t, "county-export", p.Provenance[0].Source)
}

func TestPrepareAt_NilAndNonFinite(t *testing.T) {
	p := PrepareAt(nil, fixedNow)
	require.NotNil(t, p)
	assert.False(t, p.Keys.Any())

	in := sampleRecord()
	in.Lat = f(math.NaN())
	in.Lng = f(math.Inf(1))
	p = PrepareAt(in, fixedNow)
	assert.Nil(t, p.Normalized.Lat)
	assert.Nil(t, p.Normalized.Lng)
}

func TestComputeNormalized_SynthesizesStreetFromParts(t *testing.T) {
	r := &models.CanonicalRecord{
		Address: models.Address{
			StreetNumber: "15",
			StreetDir:    "N",
			StreetName:   "Main",
			StreetSuffix: "St",
			City:         "Ocala",
			State:        "FL",
			Zip:          "34470",
		},
	}
	view := ComputeNormalized(r)
	assert.Equal(t, "15 n main street", view.StreetCore)
	assert.Equal(t, "n", view.Direction)
	assert.Equal(t, "main", view.StreetName)
}

func TestBuildKeys(t *testing.T) {
	testCases := []struct {
		name     string
		view     models.NormalizedView
		expected models.MatchKeys
	}{
		{
			name:     "apn without county",
			view:     models.NormalizedView{APN: "555111"},
			expected: models.MatchKeys{},
		},
		{
			name:     "address without zip gives owner-address only",
			view:     models.NormalizedView{Owner: "jane", StreetCore: "1 a street", City: "x", State: "WA"},
			expected: models.MatchKeys{OwnerAddrLite: "o:jane|a:1 a street|ct:x|s:WA"},
		},
		{
			name:     "address without owner",
			view:     models.NormalizedView{StreetCore: "1 a street", City: "x", State: "WA", Zip: "98201"},
			expected: models.MatchKeys{AddrFull: "a:1 a street|ct:x|s:WA|z:98201"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, BuildKeys(tc.view))
		})
	}
}

func TestPrepareAt_UnitMarkerSharesAddressKeys(t *testing.T) {
	plain := &models.CanonicalRecord{Owner: "Jane Doe", Address: models.Address{Line1: "12 Main St", City: "Madison", State: "WI", Zip: "53703"}}

	for _, line1 := range []string{"12 Main St Apt4", "12 Main St Apartment 4", "12 Main Street Apt 4"} {
		t.Run(line1, func(t *testing.T) {
			unit := Clone(plain)
			unit.Address.Line1 = line1

			a, b := PrepareAt(plain, fixedNow), PrepareAt(unit, fixedNow)
			assert.Equal(t, "a:12 main street|ct:madison|s:WI|z:53703", b.Keys.AddrFull)
			assert.Equal(t, a.Keys.AddrFull, b.Keys.AddrFull)
			assert.Equal(t, a.Keys.OwnerAddrLite, b.Keys.OwnerAddrLite)
		})
	}
}

func TestPrepareAt_DropsNullEntries(t *testing.T) {
	var r models.CanonicalRecord
	require.NoError(t, json.Unmarshal([]byte(`{"owner":"Jane","notes":[null,"called",null],"history":[null]}`), &r))

	out := PrepareAt(&r, fixedNow)
	assert.Equal(t, []models.Entry{{"type": "Note", "note": "called"}}, out.Notes)
	assert.Equal(t, []models.Entry{}, out.History)
}

func TestCloneDetail(t *testing.T) {
	n := 3
	d := &models.MatchDetail{Score: 0.9, DistanceMeters: f(4.2), OwnerEditDistance: &n}
	c := CloneDetail(d)
	*c.DistanceMeters = 1
	*c.OwnerEditDistance = 0
	assert.Equal(t, 4.2, *d.DistanceMeters)
	assert.Equal(t, 3, *d.OwnerEditDistance)
	assert.Nil(t, CloneDetail(nil))
}
