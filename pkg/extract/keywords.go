package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keyword is a frequent content word. Score is its share of all words.
type Keyword struct {
	Word  string  `json:"word"`
	Count int     `json:"count"`
	Score float64 `json:"score"`
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and or in on at to a an is are was were for of by with about that this these those
		from into than then there their they them its it's our ours you your yours his her hers
		has have had having not but can could will would shall should may might must also such
		which who whom whose what when where why how all any each both few more most other some
		very just only own same too over under again further once here out off been being does
		did doing because while until between through during before after above below upon per
		via`) {
		stopwords[w] = struct{}{}
	}
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// words lowercases s and splits it on anything that is not a letter,
// digit or underscore.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// Keywords returns up to n of the most frequent words longer than two
// characters, excluding stopwords. Ties are broken alphabetically. A
// non-positive n returns ten.
func Keywords(text string, n int) []Keyword {
	if n <= 0 {
		n = 10
	}
	all := words(text)
	if len(all) == 0 {
		return []Keyword{}
	}

	counts := make(map[string]int)
	for _, w := range all {
		if utf8.RuneCountInString(w) > 2 && !isStopword(w) {
			counts[w]++
		}
	}

	out := make([]Keyword, 0, len(counts))
	total := float64(len(all))
	for w, c := range counts {
		out = append(out, Keyword{Word: w, Count: c, Score: float64(c) / total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
