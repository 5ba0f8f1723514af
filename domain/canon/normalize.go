package canon

import (
	"regexp"
	"strings"
)

var (
	annotationRe = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]`)
	lensPrefixRe = regexp.MustCompile(`^from (a|an) [a-z]+ perspective\s*:`)
)

// boilerplatePrefixes is ordered longest first so "recommended action:" wins over "action:".
var boilerplatePrefixes = []string{
	"recommended action:",
	"recommended:",
	"alternative:",
	"candidate:",
	"proposed:",
	"option:",
	"choice:",
	"action:",
	"plan:",
}

// paraphrases maps every known variant word to its canonical form. Canonical forms never
// appear as keys, which keeps normalization idempotent.
var paraphrases = map[string]string{
	"allocate":   "give",
	"provide":    "give",
	"assign":     "give",
	"supplies":   "resource",
	"assets":     "resource",
	"team":       "group",
	"cohort":     "group",
	"attend":     "treat",
	"case":       "patient",
	"unit":       "ward",
	"wing":       "ward",
	"fix":        "repair",
	"restore":    "repair",
	"crossing":   "bridge",
	"overpass":   "bridge",
	"finance":    "fund",
	"bankroll":   "fund",
	"initiative": "program",
	"scheme":     "program",
}

// Paraphrases returns a copy of the variant -> canonical table
func Paraphrases() map[string]string {
	out := make(map[string]string, len(paraphrases))
	for k, v := range paraphrases {
		out[k] = v
	}
	return out
}

// NormalizeLabel reduces a display label to its semantic core: lowercase, no bracketed or
// parenthetical annotations, no boilerplate or lens prefixes, paraphrases collapsed.
func NormalizeLabel(label string) string {
	s := strings.ToLower(label)
	for {
		stripped := annotationRe.ReplaceAllString(s, " ")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = collapse(s)
	s = stripPrefixes(s)

	words := strings.Fields(s)
	for i, w := range words {
		if canonical, ok := paraphrases[w]; ok {
			words[i] = canonical
		}
	}
	return strings.Join(words, " ")
}

func stripPrefixes(s string) string {
	for changed := true; changed; {
		changed = false
		if loc := lensPrefixRe.FindStringIndex(s); loc != nil {
			s = collapse(s[loc[1]:])
			changed = true
			continue
		}
		for _, p := range boilerplatePrefixes {
			if strings.HasPrefix(s, p) {
				s = collapse(s[len(p):])
				changed = true
				break
			}
		}
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
