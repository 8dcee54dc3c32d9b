package models

// Record status values in BatchResult.StatusByKey
const (
	StatusCreated = "created"
	StatusMerged  = "merged"
)

// BatchSummary counters of one merge call
type BatchSummary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Merged    int `json:"merged"`
	Flagged   int `json:"flagged"`
	Invalid   int `json:"invalid"`
}

// ReviewItem incoming record held back for a human decision
type ReviewItem struct {
	Existing *CanonicalRecord `json:"existing"`
	Incoming *CanonicalRecord `json:"incoming"`
	Score    float64          `json:"score"`
	Detail   *MatchDetail     `json:"detail"`
	Reason   string           `json:"reason"`
}

// InvalidItem incoming record that could not be blocked
type InvalidItem struct {
	Record *CanonicalRecord `json:"record"`
	Reason string           `json:"reason"`
}

// CreatedEntry incoming record appended as a new final record
type CreatedEntry struct {
	Record *CanonicalRecord `json:"record"`
}

// MergedEntry merge that replaced a final record
type MergedEntry struct {
	Before   *CanonicalRecord `json:"before"`
	After    *CanonicalRecord `json:"after"`
	Incoming *CanonicalRecord `json:"incoming"`
	Detail   *MatchDetail     `json:"detail"`
}

// BatchResult output of one merge call
type BatchResult struct {
	Records     []*CanonicalRecord `json:"records"`
	Summary     BatchSummary       `json:"summary"`
	ReviewQueue []ReviewItem       `json:"reviewQueue"`
	Invalid     []InvalidItem      `json:"invalid"`
	Created     []CreatedEntry     `json:"created"`
	Merged      []MergedEntry      `json:"merged"`
	StatusByKey map[string]string  `json:"statusByKey"` // recordKey → created|merged
}

// NewBatchResult empty result with non-nil collections
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Records:     []*CanonicalRecord{},
		ReviewQueue: []ReviewItem{},
		Invalid:     []InvalidItem{},
		Created:     []CreatedEntry{},
		Merged:      []MergedEntry{},
		StatusByKey: map[string]string{},
	}
}
