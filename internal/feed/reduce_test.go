package feed

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go4.org/netipx"
	"lukechampine.com/uint128"
)

func mustAll(t *testing.T, raws ...string) []Entry {
	t.Helper()
	out := make([]Entry, 0, len(raws))
	for _, r := range raws {
		e, err := Normalize(r, FamilyAny)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		opts ReduceOptions
		v4   []string
		v6   []string
	}{
		{
			name: "aggressive merges adjacent blocks",
			in:   []string{"10.0.0.0/24", "10.0.1.0/24", "10.0.0.5"},
			opts: ReduceOptions{Mode: Aggressive},
			v4:   []string{"10.0.0.0/23"},
		},
		{
			name: "aggressive resplits unaligned range",
			in:   []string{"10.0.0.1-10.0.0.6"},
			opts: ReduceOptions{Mode: Aggressive},
			v4:   []string{"10.0.0.1", "10.0.0.2/31", "10.0.0.4/31", "10.0.0.6"},
		},
		{
			name: "aggressive at family max",
			in:   []string{"255.255.255.255", "255.255.255.254"},
			opts: ReduceOptions{Mode: Aggressive},
			v4:   []string{"255.255.255.254/31"},
		},
		{
			name: "aggressive ipv6",
			in:   []string{"2001:db8:8000::/33", "2001:db8::/33", "2001:db8::1"},
			opts: ReduceOptions{Mode: Aggressive},
			v6:   []string{"2001:db8::/32"},
		},
		{
			name: "strict drops duplicates and contained",
			in:   []string{"10.0.0.5", "10.0.0.0/24", "10.0.0.5/32", "10.0.0.0/24"},
			opts: ReduceOptions{Mode: Strict},
			v4:   []string{"10.0.0.0/24"},
		},
		{
			name: "strict keeps adjacent entries apart",
			in:   []string{"10.0.0.128/25", "10.0.0.0/25"},
			opts: ReduceOptions{Mode: Strict},
			v4:   []string{"10.0.0.0/25", "10.0.0.128/25"},
		},
		{
			name: "strict keeps range boundaries",
			in:   []string{"10.0.0.1-10.0.0.6"},
			opts: ReduceOptions{Mode: Strict},
			v4:   []string{"10.0.0.1-10.0.0.6"},
		},
		{
			name: "strict clips partial overlap",
			in:   []string{"10.0.0.5-10.0.0.20", "10.0.0.0-10.0.0.10"},
			opts: ReduceOptions{Mode: Strict},
			v4:   []string{"10.0.0.0-10.0.0.10", "10.0.0.11-10.0.0.20"},
		},
		{
			name: "strict merges partial overlap when asked",
			in:   []string{"10.0.0.5-10.0.0.20", "10.0.0.0-10.0.0.10"},
			opts: ReduceOptions{Mode: Strict, MergeOverlaps: true},
			v4:   []string{"10.0.0.0-10.0.0.20"},
		},
		{
			name: "families are kept apart",
			in:   []string{"2001:db8::1", "10.0.0.1", "::ffff:10.0.0.1"},
			opts: ReduceOptions{Mode: Aggressive},
			v4:   []string{"10.0.0.1"},
			v6:   []string{"::ffff:10.0.0.1", "2001:db8::1"},
		},
		{
			name: "empty input",
			opts: ReduceOptions{Mode: Aggressive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(mustAll(t, tt.in...), tt.opts)
			assert.Equal(t, tt.v4, nilIfEmpty(got.V4.Strings()))
			assert.Equal(t, tt.v6, nilIfEmpty(got.V6.Strings()))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestReduce_KeepsComments(t *testing.T) {
	in := mustAll(t, "10.0.0.2-10.0.0.3", "10.0.0.9")
	in[0].Comment = "pair"
	in[1].Comment = "single"

	got := Reduce(in, ReduceOptions{Mode: Aggressive})
	require.Len(t, got.V4, 2)
	assert.Equal(t, "pair", got.V4[0].Comment)
	assert.Equal(t, "single", got.V4[1].Comment)
}

func TestSplitRange(t *testing.T) {
	all4 := SplitRange(V4, uint128.Zero, V4.Max())
	assert.Equal(t, []string{"0.0.0.0/0"}, EntrySet(all4).Strings())

	all6 := SplitRange(V6, uint128.Zero, uint128.Max)
	assert.Equal(t, []string{"::/0"}, EntrySet(all6).Strings())

	top := MustNormalize("255.255.255.250-255.255.255.255")
	assert.Equal(t, []string{"255.255.255.250/31", "255.255.255.252/30"}, EntrySet(top.Blocks()).Strings())

	assert.Nil(t, SplitRange(V4, uint128.From64(2), uint128.From64(1)))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Aggressive")
	require.NoError(t, err)
	assert.Equal(t, Aggressive, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Strict, m)

	_, err = ParseMode("loose")
	assert.Error(t, err)
}

// randomEntries draws entries from small windows so overlaps are common.
func randomEntries(r *rand.Rand, n int) []Entry {
	out := make([]Entry, 0, n)
	for range n {
		var raw string
		switch r.IntN(5) {
		case 0:
			raw = fmt.Sprintf("10.0.%d.%d", r.IntN(4), r.IntN(256))
		case 1:
			raw = fmt.Sprintf("10.0.%d.%d/%d", r.IntN(4), r.IntN(256), 22+r.IntN(11))
		case 2:
			a, b := r.IntN(1024), r.IntN(1024)
			if a > b {
				a, b = b, a
			}
			raw = fmt.Sprintf("10.0.%d.%d-10.0.%d.%d", a/256, a%256, b/256, b%256)
		case 3:
			raw = fmt.Sprintf("2001:db8::%x/%d", r.IntN(4096), 116+r.IntN(13))
		default:
			a, b := r.IntN(4096), r.IntN(4096)
			if a > b {
				a, b = b, a
			}
			raw = fmt.Sprintf("2001:db8::%x-2001:db8::%x", a, b)
		}
		out = append(out, MustNormalize(raw))
	}
	return out
}

func coverage(t *testing.T, entries []Entry) []netipx.IPRange {
	t.Helper()
	var b netipx.IPSetBuilder
	for _, e := range entries {
		b.AddRange(e.IPRange())
	}
	set, err := b.IPSet()
	require.NoError(t, err)
	return set.Ranges()
}

func TestReduce_Properties(t *testing.T) {
	modes := []ReduceOptions{
		{Mode: Strict},
		{Mode: Strict, MergeOverlaps: true},
		{Mode: Aggressive},
	}
	r := rand.New(rand.NewPCG(1, 2))

	for round := range 200 {
		in := randomEntries(r, 1+r.IntN(40))
		for _, opts := range modes {
			name := fmt.Sprintf("round %d %s merge=%v", round, opts.Mode, opts.MergeOverlaps)
			got := Reduce(in, opts)

			assert.Equal(t, coverage(t, in), coverage(t, got.All()), "%s: coverage changed", name)

			for _, set := range []EntrySet{got.V4, got.V6} {
				for i := 1; i < len(set); i++ {
					assert.Negative(t, compare(set[i-1], set[i]), "%s: not sorted", name)
					assert.False(t, set[i-1].Overlaps(set[i]), "%s: %s overlaps %s", name, set[i-1], set[i])
				}
			}

			again := Reduce(got.All(), opts)
			assert.Equal(t, got.V4.Strings(), again.V4.Strings(), "%s: not idempotent", name)
			assert.Equal(t, got.V6.Strings(), again.V6.Strings(), "%s: not idempotent", name)
		}
	}
}
