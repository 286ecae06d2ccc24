package keywords

import "strings"

// defaultStopwords are Korean particles, connectives and polite endings that
// carry no topic on their own.
var defaultStopwords = []string{
	"및", "그리고", "에서", "으로", "에", "은", "는", "이", "가", "을", "를", "도", "만",
	"과", "와", "요", "게", "좀", "이나", "나", "으로의", "으로도", "합니다", "해주세요", "같아요",
}

type StopwordSet map[string]struct{}

func NewStopwordSet(words ...string) StopwordSet {
	s := make(StopwordSet, len(words))
	s.Add(words...)
	return s
}

func DefaultStopwords() StopwordSet {
	return NewStopwordSet(defaultStopwords...)
}

func (s StopwordSet) Add(words ...string) {
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			s[w] = struct{}{}
		}
	}
}

func (s StopwordSet) Has(word string) bool {
	_, ok := s[word]
	return ok
}

// allStopwords reports whether every space-separated part of phrase is a
// stopword.
func (s StopwordSet) allStopwords(phrase string) bool {
	for _, w := range strings.Split(phrase, " ") {
		if !s.Has(w) {
			return false
		}
	}
	return true
}
