package reconcile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// legalSuffixes lists common legal entity suffixes to strip during name
// normalization. Providers disagree on whether a venue is "Joe's Escape
// Room" or "Joe's Escape Room LLC".
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PC", " P.C.", " P.C",
	" PLLC",
	" CO", " CO.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a venue name for matching by:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Removing common legal suffixes (LLC, Inc, Corp, etc.)
//  4. Stripping punctuation (commas, periods, apostrophes, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	return name
}

// tokens splits a normalized name into its unique sorted words.
func tokens(name string) []string {
	seen := map[string]bool{}
	for _, tok := range strings.Fields(name) {
		seen[tok] = true
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// TokenSetRatio scores the similarity of two normalized names in [0, 1],
// insensitive to word order and to words present in only one name. It splits
// both names into token sets, then compares the joined intersection against
// each side's full token set using Levenshtein similarity and keeps the best
// score. Identical token sets score 1 regardless of original word order.
func TokenSetRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ta, tb := tokens(a), tokens(b)
	inter := intersect(ta, tb)

	base := strings.Join(inter, " ")
	full1 := strings.Join(union(inter, diff(ta, tb)), " ")
	full2 := strings.Join(union(inter, diff(tb, ta)), " ")

	if len(inter) > 0 && full1 == full2 {
		return 1
	}

	p := levenshtein.NewParams()
	best := levenshtein.Similarity(full1, full2, p)
	if base != "" {
		if s := levenshtein.Similarity(base, full1, p); s > best {
			best = s
		}
		if s := levenshtein.Similarity(base, full2, p); s > best {
			best = s
		}
	}
	return best
}

func intersect(a, b []string) []string {
	inB := map[string]bool{}
	for _, t := range b {
		inB[t] = true
	}
	var out []string
	for _, t := range a {
		if inB[t] {
			out = append(out, t)
		}
	}
	return out
}

func diff(a, b []string) []string {
	inB := map[string]bool{}
	for _, t := range b {
		inB[t] = true
	}
	var out []string
	for _, t := range a {
		if !inB[t] {
			out = append(out, t)
		}
	}
	return out
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
