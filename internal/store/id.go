package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	idEntropyMu sync.Mutex
)

// NewID returns a monotonic ULID, shared by the SQL and in-memory stores.
func NewID() string {
	return NewIDAt(time.Now())
}

func NewIDAt(t time.Time) string {
	idEntropyMu.Lock()
	defer idEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), idEntropy).String()
}
