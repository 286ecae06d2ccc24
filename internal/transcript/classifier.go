// Package transcript turns raw support transcripts into customer-only text:
// it attributes lines to speakers, strips assistant boilerplate and
// normalizes what is left.
package transcript

import (
	"regexp"
	"strings"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleBot
	RoleAgent
	RoleCustomer
)

func (r Role) String() string {
	switch r {
	case RoleBot:
		return "bot"
	case RoleAgent:
		return "agent"
	case RoleCustomer:
		return "customer"
	default:
		return "unknown"
	}
}

var (
	timestampPrefix = regexp.MustCompile(`^\s*\(\d{1,2}:\d{2}:\d{2}\)\s*`)
	speakerLine     = regexp.MustCompile(`^\s*([^:\n]+):\s*(.*)$`)

	botLabel      = regexp.MustCompile(`(?i)(여신BOT|\bBOT\b)`)
	customerLabel = regexp.MustCompile(`(?i)(iOS|Android|Web)\s*User|End[\s-]*user|Visitor|Customer|고객|사용자|유저|손님`)
	agentLabel    = regexp.MustCompile(`(?i)(매니저|Manager|관리자|Agent|상담사|admin)`)
	shortName     = regexp.MustCompile(`^[가-힣]{2,4}$`)
)

// HasSpeakerLabels reports whether any line of text starts with a "name:"
// prefix once its timestamp is removed. Callers use it to choose between
// speaker-aware extraction and pass-through.
func HasSpeakerLabels(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if _, _, ok := splitSpeaker(line); ok {
			return true
		}
	}
	return false
}

// StripTimestamp removes a leading "(HH:MM:SS)" marker.
func StripTimestamp(line string) string {
	return timestampPrefix.ReplaceAllString(line, "")
}

// splitSpeaker returns the trimmed label and the utterance of a labeled
// line. A leading timestamp is never part of the label.
func splitSpeaker(line string) (label, utterance string, ok bool) {
	m := speakerLine.FindStringSubmatch(StripTimestamp(line))
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), m[2], true
}

// Classify attributes a single line using the default rule table.
func Classify(line string, prior Role) Role {
	return Default.Classify(line, prior)
}

// Classify attributes a single line. Labeled lines are decided by their
// label; unlabeled lines continue the prior speaker's turn.
func (e *Extractor) Classify(line string, prior Role) Role {
	role, _ := e.classify(line, prior)
	return role
}

func (e *Extractor) classify(line string, prior Role) (Role, string) {
	label, utterance, ok := splitSpeaker(line)
	if !ok {
		text := StripTimestamp(line)
		if prior != RoleUnknown {
			return prior, text
		}
		if e.isBoilerplate(text) {
			return RoleBot, text
		}
		return RoleUnknown, text
	}
	return e.classifyLabel(label, line), utterance
}

func (e *Extractor) classifyLabel(label, line string) Role {
	switch {
	case botLabel.MatchString(label):
		return RoleBot
	case agentLabel.MatchString(label):
		// "고객센터 매니저" is staff
		return RoleAgent
	case customerLabel.MatchString(label):
		// checked before the short-name rule: "고객" is itself two syllables
		return RoleCustomer
	case e.isBoilerplate(StripTimestamp(line)):
		// "운영시간: ..." and similar menu lines look labeled
		return RoleBot
	case shortName.MatchString(label):
		return RoleAgent
	default:
		return RoleAgent
	}
}

func (e *Extractor) isBoilerplate(line string) bool {
	_, ok := e.rules.Match(strings.TrimSpace(line), ActionBotSpeaker, ActionDropLine)
	return ok
}
