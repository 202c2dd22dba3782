package versions

import "grimm.is/ipfeed/internal/feed"

// Diff lists entries present in To but not From (Added) and the reverse.
type Diff struct {
	From    uint64
	To      uint64
	Added   []feed.Entry
	Removed []feed.Entry
}

// Empty reports whether the two versions hold the same entries.
func (d Diff) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// Diff compares two retained versions entry by entry.
func (s *Store) Diff(from, to uint64) (Diff, error) {
	a, err := s.At(from)
	if err != nil {
		return Diff{}, err
	}
	b, err := s.At(to)
	if err != nil {
		return Diff{}, err
	}
	return Compare(a, b), nil
}

// Compare computes the entry-level difference between two snapshots.
func Compare(from, to *Snapshot) Diff {
	d := Diff{From: from.Version(), To: to.Version()}
	d.Added = minus(to, from)
	d.Removed = minus(from, to)
	return d
}

func minus(a, b *Snapshot) []feed.Entry {
	seen := make(map[string]struct{}, b.Len())
	for _, line := range b.Lines() {
		seen[line] = struct{}{}
	}
	var out []feed.Entry
	for _, set := range []feed.EntrySet{a.v4, a.v6} {
		for _, e := range set {
			if _, ok := seen[e.String()]; !ok {
				out = append(out, e)
			}
		}
	}
	return out
}
