package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchCache cached merge result stored in MongoDB
type BatchCache struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Fingerprint   string             `bson:"fingerprint" json:"fingerprint"`       // sha256 of the cache key
	CacheKey      string             `bson:"cache_key" json:"cache_key"`           // request fingerprint or job key
	PolicyVersion string             `bson:"policy_version" json:"policy_version"` // scoring policy the result was computed under
	Payload       []byte             `bson:"payload" json:"-"`                     // JSON-encoded BatchResult
	Summary       BatchSummary       `bson:"summary" json:"summary"`
	RecordCount   int                `bson:"record_count" json:"record_count"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed  time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount   int                `bson:"access_count" json:"access_count"`
}

// UpdateAccess cập nhật thông tin truy cập
func (bc *BatchCache) UpdateAccess() {
	bc.LastAccessed = time.Now()
	bc.AccessCount++
}

// IsExpired true when the entry is older than ttl
func (bc *BatchCache) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(bc.CreatedAt) > ttl
}

// IsValidPolicyVersion kiểm tra phiên bản policy có khớp không
func (bc *BatchCache) IsValidPolicyVersion(currentVersion string) bool {
	return bc.PolicyVersion == currentVersion
}
