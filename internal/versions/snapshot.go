package versions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"grimm.is/ipfeed/internal/feed"
)

// Snapshot is an immutable, versioned copy of the reduced entry sets.
// Accessors return copies so callers cannot mutate shared state.
type Snapshot struct {
	version   uint64
	createdAt time.Time
	v4        feed.EntrySet
	v6        feed.EntrySet
	checksum  string
}

func newSnapshot(version uint64, createdAt time.Time, sets feed.Result) *Snapshot {
	s := &Snapshot{
		version:   version,
		createdAt: createdAt.UTC(),
		v4:        sets.V4.Clone(),
		v6:        sets.V6.Clone(),
	}
	s.checksum = contentChecksum(s.v4, s.v6)
	return s
}

// contentChecksum hashes the canonical entry lines, v4 first.
func contentChecksum(sets ...feed.EntrySet) string {
	h := sha256.New()
	for _, set := range sets {
		for _, e := range set {
			h.Write([]byte(e.String()))
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Snapshot) Version() uint64      { return s.version }
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Checksum is the sha256 of the canonical entry lines.
func (s *Snapshot) Checksum() string { return s.checksum }

func (s *Snapshot) V4() feed.EntrySet { return s.v4.Clone() }
func (s *Snapshot) V6() feed.EntrySet { return s.v6.Clone() }

// Entries returns both sets.
func (s *Snapshot) Entries() feed.Result {
	return feed.Result{V4: s.v4.Clone(), V6: s.v6.Clone()}
}

// Len returns the number of entries across both families.
func (s *Snapshot) Len() int { return len(s.v4) + len(s.v6) }

// Count returns the number of entries of one family.
func (s *Snapshot) Count(f feed.Family) int {
	if f == feed.V4 {
		return len(s.v4)
	}
	return len(s.v6)
}

// Lines returns the canonical text of every entry, v4 first.
func (s *Snapshot) Lines() []string {
	return append(s.v4.Strings(), s.v6.Strings()...)
}
