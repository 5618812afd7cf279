package xid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexically sortable id, optionally prefixed ("audit-01J...").
func New(prefix string) string {
	mu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	mu.Unlock()
	if err != nil {
		id = ulid.Make()
	}

	value := strings.ToLower(id.String())
	if prefix == "" {
		return value
	}
	return prefix + "-" + value
}
