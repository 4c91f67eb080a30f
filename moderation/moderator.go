// Package moderation censors forbidden words in relayed text.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// leet maps common substitution characters back to the letters they stand
// for, so "5c4m" still matches "scam".
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Moderator masks forbidden words in text. Matching runs over a folded
// form of the input (lowercased, de-leeted, separators removed) while the
// mask is applied to the original runes, so spacing survives censoring.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

func NewModerator(words []string, mask rune) (Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		folded, _ := fold(w)
		patterns = append(patterns, folded)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{machine: machine, mask: mask}, nil
}

// Censor masks every forbidden word in text and reports the distinct
// words that matched. Clean text comes back unchanged.
func (m *Moderator) Censor(text string) (string, []string) {
	folded, at := fold(text)
	if len(folded) == 0 {
		return text, nil
	}

	hits := m.machine.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return text, nil
	}

	runes := []rune(text)
	found := make([]string, 0, len(hits))
	for _, hit := range hits {
		start, end := hit.Pos, hit.Pos+len(hit.Word)
		if start < 0 || end > len(at) {
			continue
		}
		// at maps folded positions back to the original runes
		for i := at[start]; i <= at[end-1]; i++ {
			runes[i] = m.mask
		}
		found = append(found, string(hit.Word))
	}

	return string(runes), lo.Uniq(found)
}

// fold lowercases, resolves leet substitutions and drops separators.
// at[i] is the index in the original runes of folded rune i.
//
// Digits always fold ("sp4m"), but punctuation like '!' or '@' only
// counts as leet inside a word ("stup!d"); trailing "!!" stays a
// separator so "Wow!!" does not fold to "wowii".
func fold(text string) (folded []rune, at []int) {
	runes := []rune(text)
	for i, r := range runes {
		mapped, isLeet := leet[r]
		switch {
		case isLeet && unicode.IsDigit(r):
			r = mapped
		case isLeet && wordInternal(runes, i):
			r = mapped
		}
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		at = append(at, i)
	}
	return folded, at
}

// wordInternal reports whether both neighbors of runes[i] belong to a
// word.
func wordInternal(runes []rune, i int) bool {
	if i == 0 || i == len(runes)-1 {
		return false
	}
	return isWordRune(runes[i-1]) && isWordRune(runes[i+1])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
