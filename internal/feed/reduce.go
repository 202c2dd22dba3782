package feed

import (
	"fmt"
	"slices"
	"strings"

	"lukechampine.com/uint128"
)

// Mode selects how aggressively overlapping entries are collapsed.
type Mode int

const (
	// Strict drops duplicates and contained entries but keeps each
	// entry's own boundaries.
	Strict Mode = iota
	// Aggressive coalesces adjacent and overlapping entries and
	// re-splits the result into CIDR blocks.
	Aggressive
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Aggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "aggressive":
		return Aggressive, nil
	}
	return Strict, fmt.Errorf("unknown reduction mode %q", s)
}

// ReduceOptions controls Reduce.
type ReduceOptions struct {
	Mode Mode
	// MergeOverlaps makes strict mode union partially overlapping entries
	// instead of clipping the later one to its uncovered remainder.
	MergeOverlaps bool
}

// Result holds the reduced sets, one per family.
type Result struct {
	V4 EntrySet
	V6 EntrySet
}

// Len returns the number of entries across both families.
func (r Result) Len() int { return len(r.V4) + len(r.V6) }

// All returns v4 entries followed by v6 entries.
func (r Result) All() []Entry {
	out := make([]Entry, 0, r.Len())
	out = append(out, r.V4...)
	return append(out, r.V6...)
}

// Family returns the set for f.
func (r Result) Family(f Family) EntrySet {
	if f == V4 {
		return r.V4
	}
	return r.V6
}

// Reduce deduplicates and resolves overlaps. The output covers exactly the
// union of the input, is sorted by Low then High, and has no overlaps.
// Reduce is idempotent for a fixed set of options.
func Reduce(entries []Entry, opts ReduceOptions) Result {
	var v4, v6 []Entry
	for _, e := range entries {
		if e.Family == V4 {
			v4 = append(v4, e)
		} else {
			v6 = append(v6, e)
		}
	}
	return Result{
		V4: reduceFamily(V4, v4, opts),
		V6: reduceFamily(V6, v6, opts),
	}
}

func reduceFamily(f Family, entries []Entry, opts ReduceOptions) EntrySet {
	if len(entries) == 0 {
		return nil
	}
	sorted := slices.Clone(entries)
	// wider entries first so containers are seen before what they contain
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		if c := a.Low.Cmp(b.Low); c != 0 {
			return c
		}
		return b.High.Cmp(a.High)
	})

	if opts.Mode == Aggressive {
		return coalesce(f, sorted)
	}
	return strict(f, sorted, opts.MergeOverlaps)
}

func strict(f Family, sorted []Entry, merge bool) EntrySet {
	out := make(EntrySet, 0, len(sorted))
	for _, e := range sorted {
		if len(out) == 0 {
			out = append(out, e)
			continue
		}
		last := &out[len(out)-1]
		switch {
		case e.Low.Cmp(last.High) > 0:
			out = append(out, e)
		case e.High.Cmp(last.High) <= 0:
			// duplicate or contained
		case merge:
			union := newEntry(f, last.Low, e.High)
			union.Original, union.Comment = last.Original, last.Comment
			*last = union
		default:
			rest := newEntry(f, last.High.AddWrap64(1), e.High)
			rest.Original, rest.Comment = e.Original, e.Comment
			out = append(out, rest)
		}
	}
	return out
}

func coalesce(f Family, sorted []Entry) EntrySet {
	var out EntrySet
	flush := func(low, high uint128.Uint128, src []Entry) {
		blocks := SplitRange(f, low, high)
		if len(src) == 1 {
			for i := range blocks {
				blocks[i].Original = src[0].Original
				blocks[i].Comment = src[0].Comment
			}
		}
		out = append(out, blocks...)
	}

	low, high := sorted[0].Low, sorted[0].High
	start := 0
	for i := 1; i < len(sorted); i++ {
		e := sorted[i]
		if touches(f, high, e.Low) {
			if e.High.Cmp(high) > 0 {
				high = e.High
			}
			continue
		}
		flush(low, high, sorted[start:i])
		low, high = e.Low, e.High
		start = i
	}
	flush(low, high, sorted[start:])
	return out
}

// touches reports whether an interval ending at high overlaps or is
// adjacent to one starting at low.
func touches(f Family, high, low uint128.Uint128) bool {
	if high.Equals(f.Max()) {
		return true
	}
	return low.Cmp(high.AddWrap64(1)) <= 0
}
