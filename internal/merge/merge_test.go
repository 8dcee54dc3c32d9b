package merge

import (
	"math"
	"testing"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestMerge_PreferKeepsExistingAndTracksConflicts(t *testing.T) {
	existing := &models.CanonicalRecord{
		Owner:   "Harbor Estates",
		County:  "Bay",
		Address: models.Address{Line1: "123 Harbor Rd", City: "Panama City", State: "FL", Zip: "32401"},
	}
	incoming := &models.CanonicalRecord{
		Owner:   "Harbor Estates LLC",
		APN:     "555111",
		Address: models.Address{Line1: "123 Harbor Road", City: "Panama City", StreetNumber: "123"},
	}

	out := Merge(existing, incoming, nil, fixedNow)

	assert.Equal(t, "Harbor Estates", out.Owner)
	assert.Equal(t, "Bay", out.County)
	assert.Equal(t, "555111", out.APN)
	assert.Equal(t, "123 Harbor Rd", out.Address.Line1)
	assert.Equal(t, "32401", out.Address.Zip)
	assert.Equal(t, "123", out.Address.StreetNumber)
	assert.Equal(t, map[string][]string{
		"owner":         {"Harbor Estates LLC"},
		"address.line1": {"123 Harbor Road"},
	}, out.Extra.Conflicts)
	assert.Nil(t, out.Extra.LastMergeDetail)
	require.NotNil(t, out.Keys)
	assert.Equal(t, "apn:555111|c:bay", out.Keys.APN)
}

func TestMerge_ConflictAppendedOnce(t *testing.T) {
	existing := &models.CanonicalRecord{Owner: "Alpha Trust"}
	incoming := &models.CanonicalRecord{Owner: "Beta Trust"}

	once := Merge(existing, incoming, nil, fixedNow)
	twice := Merge(once, incoming, nil, fixedNow)
	third := Merge(twice, &models.CanonicalRecord{Owner: "Gamma Trust"}, nil, fixedNow)

	assert.Equal(t, []string{"Beta Trust"}, twice.Extra.Conflicts["owner"])
	assert.Equal(t, []string{"Beta Trust", "Gamma Trust"}, third.Extra.Conflicts["owner"])
	assert.Empty(t, existing.Extra.Conflicts)
}

func TestMerge_UnionLaws(t *testing.T) {
	testCases := []struct {
		name           string
		existingPhones []string
		incomingPhones []string
		existingEmails []string
		incomingEmails []string
		expectedPhones []string
		expectedEmails []string
	}{
		{
			name:           "disjoint",
			existingPhones: []string{"5551112222"},
			incomingPhones: []string{"5553334444"},
			existingEmails: []string{"a@x.com"},
			incomingEmails: []string{"b@x.com"},
			expectedPhones: []string{"5551112222", "5553334444"},
			expectedEmails: []string{"a@x.com", "b@x.com"},
		},
		{
			name:           "overlap after normalization",
			existingPhones: []string{"(555) 111-2222"},
			incomingPhones: []string{"1-555-111-2222", "555.999.0000"},
			existingEmails: []string{"A@X.com"},
			incomingEmails: []string{" a@x.com"},
			expectedPhones: []string{"5551112222", "5559990000"},
			expectedEmails: []string{"a@x.com"},
		},
		{
			name:           "one side empty",
			incomingPhones: []string{"5551112222", "5551112222", ""},
			existingEmails: []string{"a@x.com"},
			expectedPhones: []string{"5551112222"},
			expectedEmails: []string{"a@x.com"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := Merge(
				&models.CanonicalRecord{Phones: tc.existingPhones, Emails: tc.existingEmails},
				&models.CanonicalRecord{Phones: tc.incomingPhones, Emails: tc.incomingEmails},
				nil, fixedNow,
			)
			assert.ElementsMatch(t, tc.expectedPhones, out.Phones)
			assert.ElementsMatch(t, tc.expectedEmails, out.Emails)
		})
	}
}

func TestMerge_NumericsAreNotConflictTracked(t *testing.T) {
	out := Merge(
		&models.CanonicalRecord{Acreage: f(3), EstValue: nil, Lat: f(math.NaN())},
		&models.CanonicalRecord{Acreage: f(5), EstValue: f(120000), Lat: f(30.1), Lng: f(-85.6)},
		nil, fixedNow,
	)

	assert.Equal(t, 3.0, *out.Acreage)
	assert.Equal(t, 120000.0, *out.EstValue)
	assert.Equal(t, 30.1, *out.Lat)
	assert.Equal(t, -85.6, *out.Lng)
	assert.Empty(t, out.Extra.Conflicts)
}

func TestMerge_ListsFlagsAndProvenance(t *testing.T) {
	earlier := fixedNow.Add(-24 * time.Hour)
	existing := &models.CanonicalRecord{
		Notes:      []models.Entry{{"note": "existing"}},
		History:    []models.Entry{{"type": "import"}},
		Provenance: []models.Provenance{{Source: "csv", ImportedAt: earlier}},
	}
	incoming := &models.CanonicalRecord{
		DNC:        true,
		Notes:      []models.Entry{{"note": "existing"}},
		Provenance: []models.Provenance{{Source: "xlsx"}},
	}
	detail := &models.MatchDetail{Score: 0.9, APNMatch: true}

	out := Merge(existing, incoming, detail, fixedNow)

	assert.True(t, out.DNC)
	assert.Equal(t, []models.Entry{{"note": "existing"}, {"note": "existing"}}, out.Notes)
	assert.Equal(t, []models.Entry{{"type": "import"}}, out.History)
	require.Len(t, out.Provenance, 2)
	assert.Equal(t, "csv", out.Provenance[0].Source)
	assert.Equal(t, earlier, out.Provenance[0].ImportedAt)
	assert.Equal(t, "xlsx", out.Provenance[1].Source)
	assert.Equal(t, fixedNow, out.Provenance[1].ImportedAt)

	require.NotNil(t, out.Extra.LastMergeDetail)
	assert.Equal(t, *detail, *out.Extra.LastMergeDetail)
	assert.NotSame(t, detail, out.Extra.LastMergeDetail)

	out.Notes[0]["note"] = "changed"
	assert.Equal(t, "existing", existing.Notes[0]["note"])
	assert.Equal(t, "existing", incoming.Notes[0]["note"])
}
