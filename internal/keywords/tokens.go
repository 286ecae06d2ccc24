package keywords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"golang.org/x/text/unicode/norm"
)

// MaxKeywords caps a keyword ranking.
const MaxKeywords = 500

var nonWord = regexp.MustCompile(`[^a-z0-9가-힣\s]+`)

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Freq    int    `json:"freq"`
}

func RankTokenFrequency(corpusText string, limit int) []KeywordCount {
	return defaultBuilder.RankTokenFrequency(corpusText, limit)
}

// RankTokenFrequency counts single tokens. It is the summary of last resort
// when no language model is available.
func (b *Builder) RankTokenFrequency(corpusText string, limit int) []KeywordCount {
	if limit <= 0 {
		return []KeywordCount{}
	}
	if limit > MaxKeywords {
		limit = MaxKeywords
	}

	index := make(map[string]int)
	var items []KeywordCount
	for _, tok := range Tokenize(corpusText) {
		if runeLen(tok) < minTokenRunes || numericPattern.MatchString(tok) || b.stop.Has(tok) {
			continue
		}
		if i, ok := index[tok]; ok {
			items[i].Freq++
			continue
		}
		index[tok] = len(items)
		items = append(items, KeywordCount{Keyword: tok, Freq: 1})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Freq > items[j].Freq
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []KeywordCount{}
	}
	return items
}

// Tokenize normalizes text to NFKC, strips markup and lower-cases it, then
// lets prose split it. Abbreviations and decimals stay whole ("u.s.a." →
// "usa") and contraction clitics are dropped; only Latin letters, digits
// and Hangul survive inside each token.
func Tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(stripHTML(text)))
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(nonWord.ReplaceAllString(text, " "))
	}

	tokens := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		if isClitic(tok.Text) {
			continue
		}
		if t := nonWord.ReplaceAllString(tok.Text, ""); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// isClitic matches the contraction suffixes prose splits off ("n't", "'s").
func isClitic(tok string) bool {
	return tok == "n't" || strings.HasPrefix(tok, "'")
}

func stripHTML(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return doc.Text()
}
