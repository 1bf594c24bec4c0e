package corpus

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var attributionRegex = regexp.MustCompile(`^(.+?)\s*\(Pág\.\s*(\d+)\)$`)

// Attribution identifies the document and page an item was drawn from.
type Attribution struct {
	Name string `json:"name"`
	Page int    `json:"page"`
}

// String renders the attribution as "<name> (Pág. <page>)".
func (a Attribution) String() string {
	return FormatAttribution(a.Name, a.Page)
}

// FormatAttribution renders a source attribution string.
func FormatAttribution(name string, page int) string {
	return fmt.Sprintf("%s (Pág. %d)", name, page)
}

// ParseAttribution parses a source attribution string. ok is false when s
// does not carry a page reference.
func ParseAttribution(s string) (Attribution, bool) {
	m := attributionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Attribution{}, false
	}
	page, err := strconv.Atoi(m[2])
	if err != nil {
		return Attribution{}, false
	}
	return Attribution{Name: m[1], Page: page}, true
}

// ResolveDocument finds name among the uploaded file names: exact match
// first, then a case-insensitive match with extensions stripped. It returns
// the index into names.
func ResolveDocument(name string, names []string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	base := stripExt(name)
	for i, n := range names {
		if strings.EqualFold(stripExt(n), base) {
			return i, true
		}
	}
	return -1, false
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
