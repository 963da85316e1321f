// Package dedup decides whether two company names denote the same company.
// It is intentionally conservative: normalization strips legal suffixes and
// punctuation, but there is no fuzzy distance matching, so distinct companies
// that share a common word are never merged.
package dedup

import (
	"strings"
	"unicode"
)

// legalSuffixes are business descriptors stripped from the end of a name,
// repeatedly, so "Acme Holdings Inc" normalizes the same as "Acme".
var legalSuffixes = []string{
	"incorporated",
	"corporation",
	"technologies",
	"technology",
	"consulting",
	"solutions",
	"holdings",
	"services",
	"software",
	"partners",
	"limited",
	"company",
	"agency",
	"group",
	"corp",
	"labs",
	"gmbh",
	"llc",
	"ltd",
	"inc",
	"co",
}

// knownAliases lists name pairs that denote the same company even though
// their normalized forms differ. Entries are stored in normalized form
// ("Amazon Web Services" normalizes to "amazonweb" because "services" is a
// legal suffix). Matching is substring containment in either direction.
var knownAliases = [][2]string{
	{"salesforce", "sfdc"},
	{"amazonweb", "aws"},
	{"googlecloud", "gcp"},
	{"internationalbusinessmachines", "ibm"},
	{"hewlettpackard", "hp"},
	{"jpmorgan", "jpmorganchase"},
}

// Normalize derives the dedup key for a company name: lower-cased, trademark
// glyphs removed, legal-entity suffixes and a leading article stripped, and
// every remaining non-alphanumeric character dropped.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '®', '™', '©':
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	s = stripSuffixes(s)

	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripSuffixes removes legal-entity suffixes anchored at the end of s, one
// word at a time, stopping when nothing more matches or the name would become
// empty (a name that is only "Solutions" stays as-is).
func stripSuffixes(s string) string {
	for {
		s = strings.TrimRight(s, " .,&-")
		stripped := false
		for _, suffix := range legalSuffixes {
			rest := strings.TrimSuffix(s, suffix)
			if rest == s || rest == "" {
				continue
			}
			// Word boundary check so "Zinc" does not lose its "inc".
			if !isBoundary(rest[len(rest)-1]) {
				continue
			}
			rest = strings.TrimRight(rest, " .,&-")
			if rest == "" {
				continue
			}
			s = rest
			stripped = true
			break
		}
		if !stripped {
			return s
		}
	}
}

func isBoundary(c byte) bool {
	return c == ' ' || c == '.' || c == ',' || c == '&' || c == '-'
}

// SameCompany reports whether two raw company names denote the same company.
// It is symmetric in its arguments.
func SameCompany(a, b string) bool {
	// Raw strings identical except for trailing whitespace.
	if strings.TrimRight(a, " \t\r\n") == strings.TrimRight(b, " \t\r\n") {
		return true
	}

	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	for _, pair := range knownAliases {
		if matchesAlias(na, nb, pair[0], pair[1]) || matchesAlias(na, nb, pair[1], pair[0]) {
			return true
		}
	}
	return false
}

func matchesAlias(na, nb, first, second string) bool {
	return strings.Contains(na, first) && strings.Contains(nb, second)
}
