package utils

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// GenerateJobID job identifier with a short prefix
func GenerateJobID() string {
	return "job_" + uuid.NewString()
}

// Fingerprint sha256 of a cache key, "sha256:<hex>"
func Fingerprint(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x", hash)
}
