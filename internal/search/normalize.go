package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer maps an entity mention to its lookup key.
type Normalizer func(string) string

// Normalize trims surrounding whitespace and lowercases the entity text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeStrict applies Unicode NFKC, lowercases, keeps letters only and drops
// English stopwords. A stopword normalizes to "".
func NormalizeStrict(text string) string {
	s := cases.Lower(language.Und).String(norm.NFKC.String(text))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
	if _, ok := stopwords[s]; ok {
		return ""
	}
	return s
}

// NormalizerByName returns the normalizer for a config value ("basic" or "strict").
func NormalizerByName(name string) Normalizer {
	if name == "strict" {
		return NormalizeStrict
	}
	return Normalize
}

// stopwords is the NLTK English stopword list.
var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
		i me my myself we our ours ourselves you your yours yourself yourselves
		he him his himself she her hers herself it its itself they them their theirs
		themselves what which who whom this that these those am is are was were be been
		being have has had having do does did doing a an the and but if or because as
		until while of at by for with about against between into through during before
		after above below to from up down in out on off over under again further then
		once here there when where why how all any both each few more most other some
		such no nor not only own same so than too very s t can will just don should now
		d ll m o re ve y ain aren couldn didn doesn hadn hasn haven isn ma mightn mustn
		needn shan shouldn wasn weren won wouldn`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()
