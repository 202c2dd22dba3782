package feed

import "lukechampine.com/uint128"

// SplitRange covers [low, high] with the fewest aligned blocks, in
// ascending order. Single addresses come back as KindAddress entries.
func SplitRange(f Family, low, high uint128.Uint128) []Entry {
	if low.Cmp(high) > 0 {
		return nil
	}

	width := f.Bits()
	var out []Entry
	for {
		k := low.TrailingZeros()
		if k > width {
			k = width
		}
		for k > 0 && low.Or(hostMask(k)).Cmp(high) > 0 {
			k--
		}

		end := low.Or(hostMask(k))
		out = append(out, newEntry(f, low, end))
		if end.Cmp(high) >= 0 {
			return out
		}
		low = end.AddWrap64(1)
	}
}

// Blocks returns e expressed as aligned blocks. Address and CIDR entries
// return themselves.
func (e Entry) Blocks() []Entry {
	if e.Kind != KindRange {
		return []Entry{e}
	}
	blocks := SplitRange(e.Family, e.Low, e.High)
	for i := range blocks {
		blocks[i].Original = e.Original
		blocks[i].Comment = e.Comment
	}
	return blocks
}
