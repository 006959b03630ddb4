package schema

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

type NameTag struct {
	Name string
	Slot int
}

// TagNames appends " (IMAGE n)" after every whole-word, case-insensitive
// occurrence of a tagged name. Longer names are tried first so "Ann" never
// matches inside "Anna Lee".
func TagNames(text string, tags []NameTag) string {
	if text == "" || len(tags) == 0 {
		return text
	}

	fold := cases.Fold()
	type candidate struct {
		folded string
		runes  int
		suffix string
	}
	cands := make([]candidate, 0, len(tags))
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name == "" || t.Slot <= 0 {
			continue
		}
		cands = append(cands, candidate{
			folded: fold.String(name),
			runes:  utf8.RuneCountInString(name),
			suffix: fmt.Sprintf(" (IMAGE %d)", t.Slot),
		})
	}
	if len(cands) == 0 {
		return text
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].runes > cands[j].runes })

	var out strings.Builder
	out.Grow(len(text) + 16*len(cands))

	prev := rune(-1)
	for i := 0; i < len(text); {
		matched := false
		if !isWordRune(prev) {
			for _, c := range cands {
				end, ok := runeOffset(text, i, c.runes)
				if !ok || fold.String(text[i:end]) != c.folded {
					continue
				}
				next, _ := utf8.DecodeRuneInString(text[end:])
				if end < len(text) && isWordRune(next) {
					continue
				}
				out.WriteString(text[i:end])
				if !strings.HasPrefix(text[end:], " (IMAGE ") {
					out.WriteString(c.suffix)
				}
				prev, _ = utf8.DecodeLastRuneInString(text[i:end])
				i = end
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		out.WriteString(text[i : i+size])
		prev = r
		i += size
	}
	return out.String()
}

func runeOffset(s string, start, n int) (int, bool) {
	i := start
	for k := 0; k < n; k++ {
		if i >= len(s) {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i, true
}

func isWordRune(r rune) bool {
	if r < 0 {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
