package merge

import (
	"testing"
	"time"

	"github.com/land-ingest/app/models"
	"github.com/land-ingest/internal/mapper"
	"github.com/land-ingest/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	m, err := mapper.New()
	require.NoError(t, err)
	return NewEngine(m, zap.NewNop())
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func harborExisting() *models.CanonicalRecord {
	return &models.CanonicalRecord{
		Source:  "crm",
		Owner:   "Harbor Estates",
		APN:     "555111",
		County:  "Bay",
		Address: models.Address{Line1: "123 Harbor Rd", City: "Panama City", State: "FL", Zip: "32401"},
		Phones:  []string{"5551112222"},
	}
}

func parcel(owner, line, zip string) *models.CanonicalRecord {
	return &models.CanonicalRecord{
		Owner:   owner,
		County:  "Bay",
		Address: models.Address{Line1: line, City: "Panama City", State: "FL", Zip: zip},
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.AutoMergeWithoutAPN)
	assert.True(t, opts.PreventCrossZip)

	var zero Options
	assert.False(t, zero.AutoMergeWithoutAPN)
	assert.False(t, zero.PreventCrossZip)
}

func TestMergeRows_APNMatchMerges(t *testing.T) {
	rows := []models.Row{{
		"APN":          "555111",
		"Owner":        "Harbor Estates",
		"Site Address": "123 Harbor Rd",
		"City":         "Panama City",
		"State":        "FL",
		"Zip":          "32401",
		"County":       "Bay",
		"Phone 2":      "555-222-3333",
		"DNC":          "yes",
	}}

	res := newEngine(t).MergeRows([]*models.CanonicalRecord{harborExisting()}, rows, "csv", testOptions())

	assert.Equal(t, models.BatchSummary{Processed: 1, Merged: 1}, res.Summary)
	require.Len(t, res.Records, 1)
	merged := res.Records[0]
	assert.Contains(t, merged.Phones, "5552223333")
	assert.Contains(t, merged.Phones, "5551112222")
	assert.True(t, merged.DNC)
	assert.Equal(t, "crm", merged.Source)
	require.Len(t, merged.Provenance, 2)
	assert.Equal(t, "csv", merged.Provenance[1].Source)
	require.NotNil(t, merged.Extra.LastMergeDetail)
	assert.True(t, merged.Extra.LastMergeDetail.APNMatch)

	require.Len(t, res.Merged, 1)
	assert.False(t, res.Merged[0].Before.DNC)
	assert.Same(t, merged, res.Merged[0].After)
	assert.Equal(t, 1.0, res.Merged[0].Detail.Score)
	assert.Equal(t, map[string]string{"apn:555111|c:bay": models.StatusMerged}, res.StatusByKey)
}

func TestMergeCanonical_CrossZip(t *testing.T) {
	existing := []*models.CanonicalRecord{parcel("Harbor Estates", "123 Harbor Rd", "32401")}
	incoming := []*models.CanonicalRecord{parcel("Harbor Estates", "123 Harbor Rd", "32402")}
	e := newEngine(t)

	t.Run("prevented", func(t *testing.T) {
		res := e.MergeCanonical(existing, incoming, testOptions())

		assert.Equal(t, 1, res.Summary.Flagged)
		require.Len(t, res.ReviewQueue, 1)
		item := res.ReviewQueue[0]
		assert.Contains(t, item.Reason, "zip")
		assert.True(t, item.Detail.ZipMismatch)
		assert.LessOrEqual(t, item.Score, CrossZipCap)
		assert.Len(t, res.Records, 1)
	})

	t.Run("allowed", func(t *testing.T) {
		opts := testOptions()
		opts.PreventCrossZip = false
		opts.AutoMergeWithoutAPN = true
		res := e.MergeCanonical(existing, incoming, opts)

		assert.Equal(t, 1, res.Summary.Created)
		assert.Len(t, res.Records, 2)
		assert.Empty(t, res.ReviewQueue)
	})
}

func TestMergeCanonical_CrossZipCapsAPNMatch(t *testing.T) {
	existing := harborExisting()
	incoming := harborExisting()
	incoming.Address.Zip = "32405"

	res := newEngine(t).MergeCanonical([]*models.CanonicalRecord{existing}, []*models.CanonicalRecord{incoming}, testOptions())

	require.Len(t, res.ReviewQueue, 1)
	assert.Equal(t, ReasonZipMismatch, res.ReviewQueue[0].Reason)
	assert.Equal(t, CrossZipCap, res.ReviewQueue[0].Score)
	assert.True(t, res.ReviewQueue[0].Detail.APNMatch)
	assert.Zero(t, res.Summary.Merged)
}

func TestMergeRows_KeylessRowIsInvalid(t *testing.T) {
	rows := []models.Row{
		{"Phone": "555-123-4567", "Notes": "no address"},
		{"City": "Panama City", "State": "FL"},
	}

	res := newEngine(t).MergeRows([]*models.CanonicalRecord{harborExisting()}, rows, "csv", testOptions())

	assert.Equal(t, models.BatchSummary{Processed: 2, Invalid: 2}, res.Summary)
	require.Len(t, res.Invalid, 2)
	assert.Equal(t, ReasonMissingKeys, res.Invalid[0].Reason)
	assert.Len(t, res.Records, 1)
	for _, r := range res.Records {
		assert.NotEqual(t, "", record.RecordKey(r))
	}
}

func TestMergeCanonical_Decisions(t *testing.T) {
	geo := func(r *models.CanonicalRecord) *models.CanonicalRecord {
		r.Lat, r.Lng = f(30.1588), f(-85.6602)
		return r
	}

	testCases := []struct {
		name      string
		existing  *models.CanonicalRecord
		incoming  *models.CanonicalRecord
		autoMerge bool
		expected  models.BatchSummary
		reason    string
		score     float64
	}{
		{
			name:      "address owner and geo without apn merges",
			existing:  geo(parcel("Harbor Estates", "123 Harbor Rd", "32401")),
			incoming:  geo(parcel("Harbor Estates", "123 Harbor Road", "32401")),
			autoMerge: true,
			expected:  models.BatchSummary{Processed: 1, Merged: 1},
		},
		{
			name:     "address owner and geo without apn, auto merge disabled",
			existing: geo(parcel("Harbor Estates", "123 Harbor Rd", "32401")),
			incoming: geo(parcel("Harbor Estates", "123 Harbor Road", "32401")),
			expected: models.BatchSummary{Processed: 1, Flagged: 1},
			reason:   ReasonAutoMergeDisabled,
			score:    0.90,
		},
		{
			name:      "address and owner only",
			existing:  parcel("Harbor Estates", "123 Harbor Rd", "32401"),
			incoming:  parcel("Harbor Estates", "123 Harbor Rd", "32401"),
			autoMerge: true,
			expected:  models.BatchSummary{Processed: 1, Flagged: 1},
			reason:    ReasonLowConfidence,
			score:     0.70,
		},
		{
			name:      "same address different owner",
			existing:  parcel("Alpha Trust", "123 Harbor Rd", "32401"),
			incoming:  parcel("Zeta Holdings", "123 Harbor Rd", "32401"),
			autoMerge: true,
			expected:  models.BatchSummary{Processed: 1, Flagged: 1},
			reason:    ReasonDuplicateKey,
			score:     0.50,
		},
		{
			name:      "unrelated parcel",
			existing:  parcel("Alpha Trust", "123 Harbor Rd", "32401"),
			incoming:  parcel("Zeta Holdings", "9 Bayview Ave", "32401"),
			autoMerge: true,
			expected:  models.BatchSummary{Processed: 1, Created: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := testOptions()
			opts.AutoMergeWithoutAPN = tc.autoMerge
			res := newEngine(t).MergeCanonical(
				[]*models.CanonicalRecord{tc.existing},
				[]*models.CanonicalRecord{tc.incoming},
				opts,
			)

			assert.Equal(t, tc.expected, res.Summary)
			if tc.reason == "" {
				assert.Empty(t, res.ReviewQueue)
				return
			}
			require.Len(t, res.ReviewQueue, 1)
			item := res.ReviewQueue[0]
			assert.Equal(t, tc.reason, item.Reason)
			assert.Equal(t, tc.score, item.Score)
			assert.Same(t, res.Records[0], item.Existing)
			require.NotNil(t, item.Detail)
		})
	}
}

func TestMergeCanonical_LaterRecordsSeeEarlierDecisions(t *testing.T) {
	first := harborExisting()
	second := harborExisting()
	second.Phones = []string{"5559990000"}
	second.Owner = "Harbor Estates Trust"

	res := newEngine(t).MergeCanonical(nil, []*models.CanonicalRecord{first, second}, testOptions())

	assert.Equal(t, models.BatchSummary{Processed: 2, Created: 1, Merged: 1}, res.Summary)
	require.Len(t, res.Records, 1)
	assert.ElementsMatch(t, []string{"5551112222", "5559990000"}, res.Records[0].Phones)
	assert.Equal(t, []string{"Harbor Estates Trust"}, res.Records[0].Extra.Conflicts["owner"])
	assert.Equal(t, models.StatusMerged, res.StatusByKey["apn:555111|c:bay"])

	require.Len(t, res.Created, 1)
	assert.Equal(t, []string{"5551112222"}, res.Created[0].Record.Phones)
}

func TestMergeCanonical_TieKeepsFirstCandidate(t *testing.T) {
	a := harborExisting()
	b := harborExisting()
	b.Source = "second"
	incoming := harborExisting()
	incoming.DNC = true

	res := newEngine(t).MergeCanonical([]*models.CanonicalRecord{a, b}, []*models.CanonicalRecord{incoming}, testOptions())

	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].DNC)
	assert.False(t, res.Records[1].DNC)
}

func TestMergeCanonical_DeterministicAndNonMutating(t *testing.T) {
	existing := []*models.CanonicalRecord{
		harborExisting(),
		parcel("Alpha Trust", "9 Bayview Ave", "32401"),
	}
	incoming := []*models.CanonicalRecord{
		parcel("Alpha Trust", "9 Bayview Avenue", "32401"),
		harborExisting(),
		{Owner: "Nobody"},
		parcel("Gulf Coast Land", "77 Beach Dr", "32413"),
	}

	var progress []int
	opts := testOptions()
	opts.OnProgress = func(processed, total int) {
		assert.Equal(t, len(incoming), total)
		progress = append(progress, processed)
	}

	e := newEngine(t)
	first := e.MergeCanonical(existing, incoming, opts)
	opts.OnProgress = nil
	second := e.MergeCanonical(existing, incoming, opts)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.Equal(t, models.BatchSummary{Processed: 4, Created: 1, Merged: 1, Flagged: 1, Invalid: 1}, first.Summary)
	for _, r := range existing {
		assert.Nil(t, r.Normalized)
		assert.Nil(t, r.Keys)
	}
}
