package auth

import (
	"bytes"
	"strings"
	"unicode"
	"xeroreports/internal/browser"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// separators in the order they are tried, only the first present one is used
var titleSeparators = []string{" – ", " - ", "–", "-"}

// TenantFromTitle reads the tenant out of a page title shaped like "Page – Tenant – Xero".
func TenantFromTitle(title string) string {
	for _, sep := range titleSeparators {
		if !strings.Contains(title, sep) {
			continue
		}
		parts := strings.Split(title, sep)
		var name string
		if len(parts) >= 3 {
			name = parts[len(parts)-2]
		} else {
			name = parts[0]
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, "xero") {
			return ""
		}
		return name
	}
	return ""
}

// normalizeTenant lowercases name, drops punctuation and collapses whitespace, so
// "Acme Pty. Ltd." and "acme pty ltd" compare equal. Digits are kept.
func normalizeTenant(name string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}), " ")
}

// SameTenant reports whether the tenant the UI shows (actual) is the one that was requested.
// Only the normalized names are compared, "Acme Pty Ltd 2" is not "Acme Pty Ltd".
func SameTenant(requested, actual string) bool {
	r := normalizeTenant(requested)
	return r != "" && r == normalizeTenant(actual)
}

// ResolveTenant maps requested onto an entry of names. An exact match wins. Otherwise
// requested may be the leading words of a name, for example "Beta" for "Beta Corp", but only
// when exactly one name starts with them.
func ResolveTenant(requested string, names []string) (string, bool) {
	r := normalizeTenant(requested)
	if r == "" {
		return "", false
	}
	var found []string
	for _, name := range names {
		n := normalizeTenant(name)
		if n == r {
			return name, true
		}
		if strings.HasPrefix(n, r+" ") {
			found = append(found, name)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// closestTenant is the name most similar to requested, used for hints only.
func closestTenant(requested string, names []string) string {
	r := normalizeTenant(requested)
	best, bestScore := "", 0.0
	for _, name := range names {
		score := matchr.JaroWinkler(r, normalizeTenant(name), false)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best
}

// parseTenantList extracts tenant names from the switcher menu. Strategies are tried in
// order and the first that yields names wins, XPath strategies are skipped.
func parseTenantList(html string, strategies []browser.Selector) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err != nil {
		return nil, err
	}

	for _, sel := range strategies {
		if sel.Kind != browser.KindCSS {
			continue
		}
		var names []string
		seen := map[string]bool{}
		doc.Find(sel.Expr).Each(func(_ int, s *goquery.Selection) {
			name := strings.Join(strings.Fields(s.Text()), " ")
			if name == "" || seen[name] {
				return
			}
			seen[name] = true
			names = append(names, name)
		})
		if len(names) > 0 {
			return names, nil
		}
	}
	return nil, nil
}
