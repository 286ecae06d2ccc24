package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nicetoya86/ticket/internal/storage/models"
)

var (
	anySpace    = regexp.MustCompile(`\s+`)
	longNumber  = regexp.MustCompile(`\b\d{10,16}\b`)
	emailLike   = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	urlLike     = regexp.MustCompile(`(?i)https?://\S+`)
	phoneHyphen = regexp.MustCompile(`\b01[016789]-?\d{3,4}-?\d{4}\b`)
)

func CollapseWhitespace(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}

// DedupeLines drops repeats of a line, comparing whitespace-collapsed
// content. The first occurrence keeps its position and original spacing.
func DedupeLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		key := CollapseWhitespace(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

type recordKey struct {
	owner string
	text  string
}

// DedupeRecords keeps the first record for each (ticket name or id, text)
// pair. Records with empty text are never considered duplicates.
func DedupeRecords(records []models.InquiryRecord) []models.InquiryRecord {
	seen := make(map[recordKey]struct{}, len(records))
	out := make([]models.InquiryRecord, 0, len(records))
	for _, r := range records {
		text := CollapseWhitespace(r.TextValue)
		if text == "" {
			out = append(out, r)
			continue
		}
		owner := r.TicketName
		if owner == "" {
			owner = r.TicketID
		}
		key := recordKey{owner: owner, text: text}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ScrubName removes every occurrence of a ticket display name from text.
// Names shorter than two runes are left alone; they would erase ordinary
// syllables.
func ScrubName(text, name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return text
	}
	return strings.ReplaceAll(text, name, "")
}

// MaskPII hides phone and account numbers, e-mail addresses and links.
func MaskPII(text string) string {
	text = phoneHyphen.ReplaceAllString(text, "****")
	text = longNumber.ReplaceAllString(text, "****")
	text = emailLike.ReplaceAllString(text, "***@***")
	return urlLike.ReplaceAllString(text, "[link]")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
