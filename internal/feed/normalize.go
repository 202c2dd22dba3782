package feed

import (
	"net/netip"
	"strings"
)

// Normalize parses one raw entry into its canonical form.
//
// Accepted notations are a single address, addr/prefix and addrA-addrB.
// CIDR host bits are cleared and reported through Entry.Masked. When hint
// is not FamilyAny the parsed family must match it.
func Normalize(raw string, hint Family) (Entry, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Entry{}, formatErr(raw, "empty entry")
	}
	if strings.Contains(text, "%") {
		return Entry{}, formatErr(raw, "zoned addresses are not allowed")
	}

	var (
		e   Entry
		err error
	)
	switch {
	case strings.Contains(text, "/"):
		e, err = parseCIDR(raw, text)
	case strings.Contains(text, "-"):
		e, err = parseRange(raw, text)
	default:
		var a netip.Addr
		a, err = parseAddr(raw, text)
		if err == nil {
			f := familyOf(a)
			e = newEntry(f, toUint(a), toUint(a))
		}
	}
	if err != nil {
		return Entry{}, err
	}

	if hint != FamilyAny && e.Family != hint {
		return Entry{}, formatErr(raw, "expected %s entry, got %s", hint, e.Family)
	}
	e.Original = raw
	return e, nil
}

// NormalizeAll validates a whole batch. The first invalid entry fails the batch.
func NormalizeAll(raws []RawEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(raws))
	for _, r := range raws {
		e, err := Normalize(r.Text, r.Family)
		if err != nil {
			return nil, err
		}
		e.Comment = strings.TrimSpace(r.Comment)
		out = append(out, e)
	}
	return out, nil
}

// MustNormalize is Normalize for literals known to be valid.
func MustNormalize(raw string) Entry {
	e, err := Normalize(raw, FamilyAny)
	if err != nil {
		panic(err)
	}
	return e
}

func parseAddr(raw, s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, formatErr(raw, "malformed address %q", s)
	}
	if a.Zone() != "" {
		return netip.Addr{}, formatErr(raw, "zoned addresses are not allowed")
	}
	return a, nil
}

func parseCIDR(raw, text string) (Entry, error) {
	p, err := netip.ParsePrefix(text)
	if err != nil {
		addr, bits, _ := strings.Cut(text, "/")
		if _, aerr := parseAddr(raw, addr); aerr != nil {
			return Entry{}, aerr
		}
		return Entry{}, formatErr(raw, "invalid prefix length %q", bits)
	}

	f := familyOf(p.Addr())
	masked := p.Masked()
	low := toUint(masked.Addr())
	high := low.Or(hostMask(f.Bits() - p.Bits()))

	e := newEntry(f, low, high)
	e.Masked = masked != p
	return e, nil
}

func parseRange(raw, text string) (Entry, error) {
	from, to, _ := strings.Cut(text, "-")
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return Entry{}, formatErr(raw, "range needs two addresses")
	}
	lo, err := parseAddr(raw, from)
	if err != nil {
		return Entry{}, err
	}
	hi, err := parseAddr(raw, to)
	if err != nil {
		return Entry{}, err
	}
	if familyOf(lo) != familyOf(hi) {
		return Entry{}, formatErr(raw, "range mixes address families")
	}

	f := familyOf(lo)
	low, high := toUint(lo), toUint(hi)
	if low.Cmp(high) > 0 {
		return Entry{}, formatErr(raw, "range start %s is after end %s", lo, hi)
	}
	return newEntry(f, low, high), nil
}
