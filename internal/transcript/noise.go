package transcript

import (
	"regexp"
	"strings"
)

var (
	backrefPrefix = regexp.MustCompile(`^\s*(?:\\\d+:?\s*)+`)
	inlineSpace   = regexp.MustCompile(`[\t ]+`)
)

// CleanText strips noise from text using the default rule table.
func CleanText(text string) string {
	return Default.CleanText(text)
}

// CleanText removes reference markers and every line the rule table marks as
// assistant or boilerplate output, then tidies whitespace: runs of spaces
// collapse to one, lines are trimmed and no more than one blank line
// separates paragraphs. CleanText(CleanText(x)) == CleanText(x).
func (e *Extractor) CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = backrefPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line != "" {
			if _, drop := e.rules.Match(line, ActionBotSpeaker, ActionDropLine); drop {
				continue
			}
		}
		kept = append(kept, line)
	}
	return joinParagraphs(kept)
}

// CleanBodyOnly drops assistant lines using the default rule table.
func CleanBodyOnly(text string) string {
	return Default.CleanBodyOnly(text)
}

// CleanBodyOnly drops only lines written by the automated assistant and
// leaves the agent/customer dialogue as it was.
func (e *Extractor) CleanBodyOnly(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, bot := e.rules.Match(strings.TrimSpace(line), ActionBotSpeaker); bot {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// joinParagraphs joins lines, keeping at most one blank line between runs of
// text and none at either end.
func joinParagraphs(lines []string) string {
	var b strings.Builder
	blank := false
	for _, line := range lines {
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}

// IsPhoneCall checks text against the default rule table.
func IsPhoneCall(text string) bool {
	return Default.IsPhoneCall(text)
}

// IsPhoneCall reports whether text carries a call placeholder. Such a
// ticket is a phone call log rather than a written inquiry and is excluded
// as a whole.
func (e *Extractor) IsPhoneCall(text string) bool {
	_, ok := e.rules.Match(text, ActionExcludeRecord)
	return ok
}

// ExclusionSet collects ticket ids whose records must all be dropped.
type ExclusionSet struct {
	ids map[string]struct{}
}

func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{ids: make(map[string]struct{})}
}

func (s *ExclusionSet) Add(ticketID string) {
	s.ids[ticketID] = struct{}{}
}

func (s *ExclusionSet) Has(ticketID string) bool {
	_, ok := s.ids[ticketID]
	return ok
}

func (s *ExclusionSet) Len() int {
	return len(s.ids)
}
