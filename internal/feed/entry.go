package feed

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
	"lukechampine.com/uint128"
)

// Family is an address family. The zero value means "any" when used as a hint.
type Family uint8

const (
	FamilyAny Family = 0
	V4        Family = 4
	V6        Family = 6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "ipv4"
	case V6:
		return "ipv6"
	default:
		return "any"
	}
}

// ParseFamily accepts "ipv4"/"v4"/"4", "ipv6"/"v6"/"6" and "" (any).
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return FamilyAny, nil
	case "ipv4", "v4", "4":
		return V4, nil
	case "ipv6", "v6", "6":
		return V6, nil
	}
	return FamilyAny, fmt.Errorf("unknown address family %q", s)
}

// Bits returns the address width.
func (f Family) Bits() int {
	if f == V4 {
		return 32
	}
	return 128
}

// Max returns the largest address value of the family.
func (f Family) Max() uint128.Uint128 {
	if f == V4 {
		return uint128.From64(0xffffffff)
	}
	return uint128.Max
}

// Kind is the notation an entry is rendered in.
type Kind uint8

const (
	KindAddress Kind = iota
	KindCIDR
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindCIDR:
		return "cidr"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// RawEntry is one unvalidated submission line.
type RawEntry struct {
	Text    string `json:"text"`
	Comment string `json:"comment,omitempty"`
	Family  Family `json:"family,omitempty"`
}

// Entry is a canonical, validated address interval.
type Entry struct {
	Kind     Kind
	Family   Family
	Low      uint128.Uint128
	High     uint128.Uint128
	Original string
	Comment  string
	// Masked is set when host bits of a CIDR were cleared.
	Masked bool
}

// newEntry picks the simplest kind that describes [low, high].
func newEntry(f Family, low, high uint128.Uint128) Entry {
	return Entry{Kind: kindFor(low, high), Family: f, Low: low, High: high}
}

func kindFor(low, high uint128.Uint128) Kind {
	if low.Equals(high) {
		return KindAddress
	}
	x := low.Xor(high)
	k := 128 - x.LeadingZeros()
	m := hostMask(k)
	if x.Equals(m) && low.And(m).IsZero() {
		return KindCIDR
	}
	return KindRange
}

// hostMask returns a value with the low k bits set.
func hostMask(k int) uint128.Uint128 {
	if k <= 0 {
		return uint128.Zero
	}
	return uint128.Max.Rsh(uint(128 - k))
}

// Bits returns the prefix length of a CIDR or address entry.
func (e Entry) Bits() int {
	k := 128 - e.Low.Xor(e.High).LeadingZeros()
	return e.Family.Bits() - k
}

// First returns the lowest address covered by e.
func (e Entry) First() netip.Addr { return toAddr(e.Family, e.Low) }

// Last returns the highest address covered by e.
func (e Entry) Last() netip.Addr { return toAddr(e.Family, e.High) }

// String returns the canonical text of e.
func (e Entry) String() string {
	switch e.Kind {
	case KindAddress:
		return e.First().String()
	case KindCIDR:
		return netip.PrefixFrom(e.First(), e.Bits()).String()
	default:
		return e.First().String() + "-" + e.Last().String()
	}
}

// IPRange returns e as a netipx range.
func (e Entry) IPRange() netipx.IPRange {
	return netipx.IPRangeFrom(e.First(), e.Last())
}

// Equal compares the covered interval and notation, ignoring metadata.
func (e Entry) Equal(o Entry) bool {
	return e.Kind == o.Kind && e.Family == o.Family && e.Low.Equals(o.Low) && e.High.Equals(o.High)
}

// Contains reports whether o lies entirely within e.
func (e Entry) Contains(o Entry) bool {
	return e.Family == o.Family && e.Low.Cmp(o.Low) <= 0 && e.High.Cmp(o.High) >= 0
}

// Overlaps reports whether e and o share at least one address.
func (e Entry) Overlaps(o Entry) bool {
	return e.Family == o.Family && e.Low.Cmp(o.High) <= 0 && o.Low.Cmp(e.High) <= 0
}

// compare orders by Low ascending then High ascending.
func compare(a, b Entry) int {
	if c := a.Low.Cmp(b.Low); c != 0 {
		return c
	}
	return a.High.Cmp(b.High)
}

// EntrySet is a sorted, single-family list of entries.
type EntrySet []Entry

// Strings returns the canonical text of every entry.
func (s EntrySet) Strings() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.String()
	}
	return out
}

// Clone returns a copy that does not share the backing array.
func (s EntrySet) Clone() EntrySet {
	if s == nil {
		return nil
	}
	out := make(EntrySet, len(s))
	copy(out, s)
	return out
}

// FromRange converts a netipx range into an entry.
func FromRange(r netipx.IPRange) (Entry, error) {
	if !r.IsValid() {
		return Entry{}, formatErr(r.String(), "invalid range")
	}
	f := familyOf(r.From())
	return newEntry(f, toUint(r.From()), toUint(r.To())), nil
}

func familyOf(a netip.Addr) Family {
	if a.Is4() {
		return V4
	}
	return V6
}

func toUint(a netip.Addr) uint128.Uint128 {
	if a.Is4() {
		b := a.As4()
		return uint128.From64(uint64(binary.BigEndian.Uint32(b[:])))
	}
	b := a.As16()
	return uint128.FromBytesBE(b[:])
}

func toAddr(f Family, u uint128.Uint128) netip.Addr {
	if f == V4 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(u.Lo))
		return netip.AddrFrom4(b)
	}
	var b [16]byte
	u.PutBytesBE(b[:])
	return netip.AddrFrom16(b)
}
