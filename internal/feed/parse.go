package feed

import (
	"bufio"
	"io"
	"strings"
)

// ParseList reads a plain-text list with one entry per line. Blank lines
// and lines starting with # or ; are skipped. Text after an inline # or ;
// becomes the entry comment. Entries are not validated here.
func ParseList(r io.Reader) ([]RawEntry, error) {
	var raws []RawEntry
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		var comment string
		if idx := strings.IndexAny(line, "#;"); idx != -1 {
			comment = strings.TrimSpace(line[idx+1:])
			line = strings.TrimSpace(line[:idx])
		}

		raws = append(raws, RawEntry{Text: line, Comment: comment})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return raws, nil
}

// FormatList writes entries one per line, with comments after " # ".
func FormatList(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		line := e.String()
		if e.Comment != "" {
			line += " # " + e.Comment
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
