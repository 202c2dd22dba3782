package versions

import (
	"encoding/json"
	"fmt"
	"time"

	"grimm.is/ipfeed/internal/feed"
)

type payload struct {
	Version   uint64          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Checksum  string          `json:"checksum"`
	Entries   payloadEntrySet `json:"entries"`
}

type payloadEntrySet struct {
	V4 []payloadEntry `json:"v4"`
	V6 []payloadEntry `json:"v6"`
}

type payloadEntry struct {
	Text     string `json:"text"`
	Original string `json:"original,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Masked   bool   `json:"masked,omitempty"`
}

// Encode serializes a snapshot for a Backend.
func Encode(s *Snapshot) ([]byte, error) {
	p := payload{
		Version:   s.version,
		CreatedAt: s.createdAt,
		Checksum:  s.checksum,
		Entries: payloadEntrySet{
			V4: encodeSet(s.v4),
			V6: encodeSet(s.v6),
		},
	}
	return json.Marshal(p)
}

func encodeSet(set feed.EntrySet) []payloadEntry {
	out := make([]payloadEntry, len(set))
	for i, e := range set {
		out[i] = payloadEntry{Text: e.String(), Original: e.Original, Comment: e.Comment, Masked: e.Masked}
	}
	return out
}

// Decode parses a stored payload. Every entry passes back through the
// normalizer and the checksum must match the decoded content.
func Decode(data []byte) (*Snapshot, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if p.Version == 0 {
		return nil, fmt.Errorf("%w: missing version", ErrCorrupt)
	}

	v4, err := decodeSet(p.Entries.V4, feed.V4)
	if err != nil {
		return nil, fmt.Errorf("%w: version %d: %w", ErrCorrupt, p.Version, err)
	}
	v6, err := decodeSet(p.Entries.V6, feed.V6)
	if err != nil {
		return nil, fmt.Errorf("%w: version %d: %w", ErrCorrupt, p.Version, err)
	}

	s := newSnapshot(p.Version, p.CreatedAt, feed.Result{V4: v4, V6: v6})
	if s.checksum != p.Checksum {
		return nil, fmt.Errorf("%w: version %d: checksum mismatch", ErrCorrupt, p.Version)
	}
	return s, nil
}

func decodeSet(in []payloadEntry, f feed.Family) (feed.EntrySet, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(feed.EntrySet, 0, len(in))
	for _, pe := range in {
		e, err := feed.Normalize(pe.Text, f)
		if err != nil {
			return nil, err
		}
		e.Original = pe.Original
		e.Comment = pe.Comment
		e.Masked = pe.Masked
		out = append(out, e)
	}
	return out, nil
}
