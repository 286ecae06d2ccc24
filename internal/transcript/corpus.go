package transcript

import (
	"strings"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
)

// CorpusStats counts what an extraction pass removed.
type CorpusStats struct {
	Input        int
	PhoneCall    int
	Empty        int
	Duplicate    int
	SpeakerAware bool
}

func ExtractCustomerCorpus(records []models.InquiryRecord) []models.InquiryRecord {
	out, _ := Default.ExtractCorpus(records)
	return out
}

// ExtractCorpus replaces each record's text with its cleaned customer-only
// text. Every record of a ticket that shows a phone call placeholder is
// dropped, as are records left empty and duplicates.
//
// Speaker attribution is used only when at least one record carries a
// "name:" label. Otherwise the batch passes through the noise filter
// unfiltered by speaker, so an unexpected transcript format degrades to
// full text instead of an empty result.
func (e *Extractor) ExtractCorpus(records []models.InquiryRecord) ([]models.InquiryRecord, CorpusStats) {
	stats := CorpusStats{Input: len(records)}
	excluded := e.phoneCallTickets(records)

	for _, r := range records {
		if HasSpeakerLabels(r.TextValue) {
			stats.SpeakerAware = true
			break
		}
	}

	out := make([]models.InquiryRecord, 0, len(records))
	for _, r := range records {
		if excluded.Has(r.TicketID) {
			stats.PhoneCall++
			continue
		}
		text := r.TextValue
		if stats.SpeakerAware {
			text = e.ExtractCustomerText(text)
		}
		text = e.CleanText(ScrubName(text, r.TicketName))
		if text == "" {
			stats.Empty++
			continue
		}
		r.TextValue = text
		out = append(out, r)
	}

	deduped := DedupeRecords(out)
	stats.Duplicate = len(out) - len(deduped)

	e.logger.Debug("Extracted customer corpus",
		zap.Int("input", stats.Input),
		zap.Int("kept", len(deduped)),
		zap.Int("phone_call", stats.PhoneCall),
		zap.Int("empty", stats.Empty),
		zap.Int("duplicate", stats.Duplicate),
		zap.Bool("speaker_aware", stats.SpeakerAware),
	)
	return deduped, stats
}

func CleanRecords(records []models.InquiryRecord) []models.InquiryRecord {
	out, _ := Default.CleanRecords(records)
	return out
}

// CleanRecords prepares records for display: full noise cleaning without
// speaker filtering, phone-call tickets and empty results removed.
func (e *Extractor) CleanRecords(records []models.InquiryRecord) ([]models.InquiryRecord, CorpusStats) {
	stats := CorpusStats{Input: len(records)}
	excluded := e.phoneCallTickets(records)

	out := make([]models.InquiryRecord, 0, len(records))
	for _, r := range records {
		if excluded.Has(r.TicketID) {
			stats.PhoneCall++
			continue
		}
		r.TextValue = e.CleanText(r.TextValue)
		if r.TextValue == "" {
			stats.Empty++
			continue
		}
		out = append(out, r)
	}
	return out, stats
}

func (e *Extractor) phoneCallTickets(records []models.InquiryRecord) *ExclusionSet {
	set := NewExclusionSet()
	for _, r := range records {
		if e.IsPhoneCall(r.TextValue) {
			set.Add(r.TicketID)
		}
	}
	return set
}

// CorpusText joins record texts into a single newline-separated corpus.
func CorpusText(records []models.InquiryRecord) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		if t := strings.TrimSpace(r.TextValue); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
