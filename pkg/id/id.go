// Package id generates identifiers for vector records and requests.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRecordID returns a random UUIDv4 string for a vector record.
func NewRecordID() string {
	return uuid.NewString()
}

// NewRecordIDs returns n record ids.
func NewRecordIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = NewRecordID()
	}
	return ids
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a monotonic ULID, sortable by creation time.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
