package audit

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/ipfeed/internal/render"
)

// UnifiedDiff compares the address lines of two rendered documents.
// Header comments are left out so only list changes show up.
func UnifiedDiff(from, to *render.Document) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        bodyLines(from),
		B:        bodyLines(to),
		FromFile: fmt.Sprintf("feed@%d", from.Version),
		ToFile:   fmt.Sprintf("feed@%d", to.Version),
		Context:  3,
	})
}

func bodyLines(doc *render.Document) []string {
	lines := difflib.SplitLines(string(doc.Body))
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(l, "#") || strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}
