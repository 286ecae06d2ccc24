// Package keywords ranks phrases and keywords in a customer corpus by plain
// occurrence counts.
package keywords

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPhrases caps every phrase ranking regardless of the requested limit.
	MaxPhrases = 50

	minPhraseRunes = 4
	minLineRunes   = 6
	minTokenRunes  = 2
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	punctOrSymbol  = regexp.MustCompile(`[\p{P}\p{S}]+`)
	inlineSpaces   = regexp.MustCompile(`[\t ]+`)
	numericPattern = regexp.MustCompile(`^\d+$`)
)

type PhraseCount struct {
	Phrase string `json:"phrase"`
	Freq   int    `json:"freq"`
}

// Builder ranks phrases and keywords against a stopword set.
type Builder struct {
	stop StopwordSet
}

// NewBuilder returns a Builder using the default stopwords plus extra.
func NewBuilder(extra ...string) *Builder {
	stop := DefaultStopwords()
	stop.Add(extra...)
	return &Builder{stop: stop}
}

var defaultBuilder = NewBuilder()

func BuildPhrases(customerText string, limit int) []PhraseCount {
	return defaultBuilder.BuildPhrases(customerText, limit)
}

// counter tallies phrases and remembers first-seen order for tie breaks.
type counter struct {
	index map[string]int
	items []PhraseCount
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(phrase string) {
	if i, ok := c.index[phrase]; ok {
		c.items[i].Freq++
		return
	}
	c.index[phrase] = len(c.items)
	c.items = append(c.items, PhraseCount{Phrase: phrase, Freq: 1})
}

// BuildPhrases counts bigrams and trigrams of adjacent tokens together with
// whole lines of six or more characters, and returns the most frequent
// ones. Ties keep first-seen order, so the output is deterministic.
func (b *Builder) BuildPhrases(customerText string, limit int) []PhraseCount {
	if strings.TrimSpace(customerText) == "" || limit <= 0 {
		return []PhraseCount{}
	}

	cleaned := urlPattern.ReplaceAllString(customerText, " ")
	cleaned = punctOrSymbol.ReplaceAllString(cleaned, " ")
	tokens := strings.Fields(cleaned)

	c := newCounter()
	for i, t1 := range tokens {
		if b.stop.Has(t1) || runeLen(t1) < minTokenRunes {
			continue
		}
		if i+1 < len(tokens) {
			t2 := tokens[i+1]
			if runeLen(t2) >= minTokenRunes {
				b.addPhrase(c, t1+" "+t2)
			}
		}
		if i+2 < len(tokens) {
			t2, t3 := tokens[i+1], tokens[i+2]
			if runeLen(t2) >= minTokenRunes && runeLen(t3) >= minTokenRunes {
				b.addPhrase(c, t1+" "+t2+" "+t3)
			}
		}
	}

	for _, line := range strings.Split(customerText, "\n") {
		line = punctOrSymbol.ReplaceAllString(line, " ")
		line = strings.TrimSpace(inlineSpaces.ReplaceAllString(line, " "))
		if runeLen(line) >= minLineRunes {
			b.addPhrase(c, line)
		}
	}

	sort.SliceStable(c.items, func(i, j int) bool {
		return c.items[i].Freq > c.items[j].Freq
	})

	if limit > MaxPhrases {
		limit = MaxPhrases
	}
	if len(c.items) > limit {
		c.items = c.items[:limit]
	}
	if c.items == nil {
		return []PhraseCount{}
	}
	return c.items
}

func (b *Builder) addPhrase(c *counter, phrase string) {
	phrase = strings.TrimSpace(phrase)
	if runeLen(phrase) < minPhraseRunes || numericPattern.MatchString(phrase) {
		return
	}
	if b.stop.allStopwords(phrase) {
		return
	}
	c.add(phrase)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
