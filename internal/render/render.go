// Package render produces the feed document served to firewalls.
//
// The format is line oriented:
//
//	# feed-version: <int>
//	# generated-at: <RFC3339 UTC>
//	<one address or CIDR per line, IPv4 first>
//
// Range entries are expanded to aligned blocks. The same snapshot always
// renders to the same bytes.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/versions"
)

// ContentType is the media type of a rendered feed.
const ContentType = "text/plain; charset=utf-8"

// Document is a rendered feed. It is never persisted.
type Document struct {
	Version     uint64
	GeneratedAt time.Time
	Body        []byte
	Checksum    string
	Lines       int
}

// ETag returns the quoted checksum for HTTP caching.
func (d *Document) ETag() string {
	return strconv.Quote(d.Checksum)
}

// Render formats snap as a feed document.
func Render(snap *versions.Snapshot) *Document {
	var buf bytes.Buffer
	generated := snap.CreatedAt().UTC()

	buf.WriteString("# feed-version: ")
	buf.WriteString(strconv.FormatUint(snap.Version(), 10))
	buf.WriteByte('\n')
	buf.WriteString("# generated-at: ")
	buf.WriteString(generated.Format(time.RFC3339))
	buf.WriteByte('\n')

	lines := 0
	for _, set := range []feed.EntrySet{snap.V4(), snap.V6()} {
		for _, e := range set {
			for _, b := range e.Blocks() {
				buf.WriteString(b.String())
				buf.WriteByte('\n')
				lines++
			}
		}
	}

	body := buf.Bytes()
	sum := sha256.Sum256(body)
	return &Document{
		Version:     snap.Version(),
		GeneratedAt: generated,
		Body:        body,
		Checksum:    hex.EncodeToString(sum[:]),
		Lines:       lines,
	}
}

// MatchesETag reports whether an If-None-Match header value refers to d.
func (d *Document) MatchesETag(header string) bool {
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	etag := d.ETag()
	for _, candidate := range bytes.Split([]byte(header), []byte(",")) {
		c := string(bytes.TrimSpace(candidate))
		c = trimWeak(c)
		if c == etag {
			return true
		}
	}
	return false
}

func trimWeak(tag string) string {
	if len(tag) > 2 && tag[:2] == "W/" {
		return tag[2:]
	}
	return tag
}
