// Package ids holds the clock and id generators injected into services.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New() string
}

// ULIDGen issues monotonic ULIDs; safe for concurrent use.
type ULIDGen struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGen() *ULIDGen {
	return &ULIDGen{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGen) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

// NewGroupID returns the identifier shared by borrows created together.
func NewGroupID() string { return uuid.NewString() }

// IsULID reports whether s parses as a ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
