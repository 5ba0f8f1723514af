package transform

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/scenario"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// variants maps each canonical word to its sorted paraphrase variants
var variants = func() map[string][]string {
	out := make(map[string][]string)
	for variant, canonical := range canon.Paraphrases() {
		out[canonical] = append(out[canonical], variant)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}()

// Paraphrase swaps words for known synonyms, each with probability equal to the intensity.
// Below 0.5 every option uses the same variant index; from 0.5 each option picks its own.
type Paraphrase struct{}

func (Paraphrase) Name() string            { return "paraphrase" }
func (Paraphrase) SemanticInvariant() bool { return true }

func (t Paraphrase) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		shared := rng.IntN(1000)
		for k := range out.Options {
			pick := shared
			if i >= 0.5 {
				pick = rng.IntN(1000)
			}
			words := strings.Split(out.Options[k].Label, " ")
			for w, word := range words {
				vs, ok := variants[strings.ToLower(word)]
				if ok && rng.Float64() < i {
					words[w] = vs[pick%len(vs)]
				}
			}
			out.Options[k].Label = strings.Join(words, " ")
		}
	})
}

type caseStyle func(string) string

func titleCase(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

func alternatingCase(s string) string {
	var b strings.Builder
	for k, r := range []rune(s) {
		if k%2 == 0 {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func sentenceCase(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// the first three styles are the uniform ones used below 0.5
var caseStyles = []caseStyle{titleCase, strings.ToUpper, strings.ToLower, alternatingCase, sentenceCase}

// LabelCase recases labels: one uniform style below 0.5, mixed per-option styles above
type LabelCase struct{}

func (LabelCase) Name() string            { return "label_case" }
func (LabelCase) SemanticInvariant() bool { return true }

func (t LabelCase) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		if i < 0.5 {
			style := caseStyles[rng.IntN(3)]
			for k := range out.Options {
				out.Options[k].Label = style(out.Options[k].Label)
			}
			return
		}
		for k := range out.Options {
			out.Options[k].Label = caseStyles[rng.IntN(len(caseStyles))](out.Options[k].Label)
		}
	})
}

var boilerplate = []string{"Option: ", "Proposed: ", "Recommended action: ", "Candidate: ", "Plan: "}

// LabelPrefix adds boilerplate: a shared prefix below 0.5, per-option prefixes from 0.5,
// and a bracketed reference suffix from 0.8.
type LabelPrefix struct{}

func (LabelPrefix) Name() string            { return "label_prefix" }
func (LabelPrefix) SemanticInvariant() bool { return true }

func (t LabelPrefix) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		shared := boilerplate[rng.IntN(len(boilerplate))]
		for k := range out.Options {
			prefix := shared
			if i >= 0.5 {
				prefix = boilerplate[rng.IntN(len(boilerplate))]
			}
			label := prefix + out.Options[k].Label
			if i >= 0.8 {
				label += fmt.Sprintf(" [ref %d]", rng.IntN(90)+10)
			}
			out.Options[k].Label = label
		}
	})
}
