package publisher

import (
	"go4.org/netipx"

	"grimm.is/ipfeed/internal/feed"
)

// covered reports whether the union of entries already contains e.
func covered(entries []feed.Entry, e feed.Entry) bool {
	var b netipx.IPSetBuilder
	for _, x := range entries {
		if x.Family == e.Family {
			b.AddRange(x.IPRange())
		}
	}
	set, err := b.IPSet()
	if err != nil {
		return false
	}
	return set.ContainsRange(e.IPRange())
}

// subtract removes e's addresses from entries. Untouched entries keep their
// metadata; cut entries keep the comment of the entry they came from.
func subtract(entries []feed.Entry, e feed.Entry) (kept []feed.Entry, hit bool, err error) {
	for _, x := range entries {
		if !x.Overlaps(e) {
			kept = append(kept, x)
			continue
		}
		hit = true

		var b netipx.IPSetBuilder
		b.AddRange(x.IPRange())
		b.RemoveRange(e.IPRange())
		set, err := b.IPSet()
		if err != nil {
			return nil, false, err
		}
		for _, r := range set.Ranges() {
			part, err := feed.FromRange(r)
			if err != nil {
				return nil, false, err
			}
			part.Original = x.Original
			part.Comment = x.Comment
			kept = append(kept, part)
		}
	}
	return kept, hit, nil
}
