package transcript

import "strings"

// SpeakerTurn is a maximal run of consecutive lines attributed to one
// speaker. Lines carry the utterance with the speaker label removed.
type SpeakerTurn struct {
	Role  Role
	Lines []string
}

// Segment partitions block into turns using the default rule table.
func Segment(block string) []SpeakerTurn {
	return Default.Segment(block)
}

// Segment partitions block into turns. Leading lines that cannot be
// attributed form a RoleUnknown turn so that every line belongs to exactly
// one turn.
func (e *Extractor) Segment(block string) []SpeakerTurn {
	var (
		turns []SpeakerTurn
		prior = RoleUnknown
	)
	for _, line := range strings.Split(block, "\n") {
		role, text := e.classify(line, prior)
		if len(turns) == 0 || turns[len(turns)-1].Role != role || isTurnStart(line) {
			turns = append(turns, SpeakerTurn{Role: role})
		}
		last := &turns[len(turns)-1]
		last.Lines = append(last.Lines, text)
		prior = role
	}
	return turns
}

// isTurnStart reports whether a line opens a new turn even when the speaker
// role repeats, e.g. two agents answering back to back.
func isTurnStart(line string) bool {
	_, _, ok := splitSpeaker(line)
	return ok
}

// ExtractCustomerText returns the customer lines of block using the default rule table.
func ExtractCustomerText(block string) string {
	return Default.ExtractCustomerText(block)
}

// ExtractCustomerText keeps only customer lines, in their original order.
// An empty result means the block holds no customer text and the record
// should be excluded.
func (e *Extractor) ExtractCustomerText(block string) string {
	var out []string
	for _, turn := range e.Segment(block) {
		if turn.Role == RoleCustomer {
			out = append(out, turn.Lines...)
		}
	}
	return strings.Join(out, "\n")
}
