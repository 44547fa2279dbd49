package extraction

import (
	"strings"
	"unicode/utf8"
)

// taggedToken is one non-special token with its predicted label.
type taggedToken struct {
	Start int
	End   int
	Label string
}

// splitTag splits a BIO label into its prefix and entity type.
// "O" and "" have no entity type. Bare labels behave like "I-".
func splitTag(label string) (prefix byte, entity string) {
	if label == "" || label == "O" {
		return 'O', ""
	}
	if len(label) > 2 && label[1] == '-' {
		switch label[0] {
		case 'B', 'I', 'E', 'S', 'L', 'U':
			p := label[0]
			switch p {
			case 'E', 'L':
				p = 'I'
			case 'S', 'U':
				p = 'B'
			}
			return p, label[2:]
		}
	}
	return 'I', label
}

// decodeSpans merges BIO-tagged tokens into entity mentions.
//
// A "B-" token opens a new span unless it is a subword glued to the previous token
// of the same open span. An "I-" token extends an open span of the same type and
// otherwise opens one. "O" closes any open span.
func decodeSpans(sentence string, tokens []taggedToken) []Mention {
	var (
		mentions []Mention
		open     bool
		entity   string
		start    int
		end      int
	)
	flush := func() {
		if !open {
			return
		}
		text := strings.TrimSpace(sliceSpan(sentence, start, end))
		if text != "" {
			mentions = append(mentions, Mention{Text: text, Label: entity, Start: start, End: end})
		}
		open = false
	}

	for _, tok := range tokens {
		if tok.End <= tok.Start {
			continue
		}
		prefix, ent := splitTag(tok.Label)
		switch {
		case prefix == 'O':
			flush()
		case open && ent == entity && (prefix == 'I' || tok.Start == end):
			end = tok.End
		default:
			flush()
			open, entity, start, end = true, ent, tok.Start, tok.End
		}
	}
	flush()
	return mentions
}

// sliceSpan returns sentence[start:end] when the offsets are valid byte offsets and
// falls back to interpreting them as rune offsets.
func sliceSpan(sentence string, start, end int) string {
	if start >= 0 && end <= len(sentence) && start < end &&
		utf8.RuneStart(sentence[start]) && (end == len(sentence) || utf8.RuneStart(sentence[end])) {
		return sentence[start:end]
	}
	runes := []rune(sentence)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

// argmax returns the index of the largest value in row.
func argmax(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
