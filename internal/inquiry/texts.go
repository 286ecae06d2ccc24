package inquiry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/internal/transcript"
	"github.com/nicetoya86/ticket/internal/vendors/channeltalk"
	"github.com/nicetoya86/ticket/internal/vendors/zendesk"
	"github.com/nicetoya86/ticket/pkg/fallback"
)

// maxChatRecords bounds the live-chat fallback of Records.
const maxChatRecords = 200

// Texts returns display-ready records: allowed inquiry types only, noise
// removed, phone-call tickets and empty texts dropped. grouped selects one
// record per ticket instead of one per body or comment.
func (s *Service) Texts(ctx context.Context, q models.Query, grouped bool) ([]models.InquiryRecord, error) {
	q = s.Normalize(q)
	op := "texts"
	if grouped {
		op = "texts_grouped"
	}

	return cached(ctx, s, cacheKey(op, q), func() ([]models.InquiryRecord, error) {
		var (
			records []models.InquiryRecord
			err     error
		)
		if grouped {
			records, err = s.store.TextsGroupedByTicket(ctx, q)
		} else {
			records, err = s.store.TextsByType(ctx, q)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load texts: %w", err)
		}

		allowed := records[:0:0]
		for _, r := range records {
			if t, ok := tags.Allowed(r.InquiryType); ok {
				r.InquiryType = t
				allowed = append(allowed, r)
			}
		}

		out, stats := s.extractor.CleanRecords(allowed)
		s.recordExclusions(stats)
		return out, nil
	})
}

// countTypes tallies normalized allowed inquiry types.
func countTypes(values map[string]int) []models.TypeCount {
	out := make([]models.TypeCount, 0, len(values))
	for t, n := range values {
		out = append(out, models.TypeCount{InquiryType: t, TicketCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TicketCount != out[j].TicketCount {
			return out[i].TicketCount > out[j].TicketCount
		}
		return out[i].InquiryType < out[j].InquiryType
	})
	return out
}

func mergeCounts(counts []models.TypeCount) []models.TypeCount {
	values := make(map[string]int)
	for _, c := range counts {
		if t, ok := tags.Allowed(c.InquiryType); ok {
			values[t] += c.TicketCount
		}
	}
	return countTypes(values)
}

// Counts returns ticket counts per allowed inquiry type for the query's
// field title and status, derived from grouped texts when the store has no
// counts.
func (s *Service) Counts(ctx context.Context, q models.Query) ([]models.TypeCount, error) {
	q = s.Normalize(q)

	return cached(ctx, s, cacheKey("counts", q), func() ([]models.TypeCount, error) {
		counts, err := s.store.CountsByType(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to count inquiry types: %w", err)
		}
		if merged := mergeCounts(counts); len(merged) > 0 {
			return merged, nil
		}

		records, err := s.store.TextsGroupedByTicket(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to load texts: %w", err)
		}
		values := make(map[string]int)
		for _, r := range records {
			if t, ok := tags.Allowed(r.InquiryType); ok {
				values[t]++
			}
		}
		return countTypes(values), nil
	})
}

// Options lists inquiry types with ticket counts. Sources are tried in
// order until one yields rows: stored counts per field-title candidate,
// counts derived from grouped texts, values seen on vendor tickets in the
// range, and finally the vendor field's options with zero counts.
func (s *Service) Options(ctx context.Context, q models.Query) ([]models.TypeCount, error) {
	q = s.Normalize(q)

	return cached(ctx, s, cacheKey("options", q), func() ([]models.TypeCount, error) {
		titles := s.fieldTitles(q)
		vendor := s.tickets != nil && s.tickets.Enabled() && q.Includes(models.SourceZendesk)
		field := &fieldLookup{src: s.tickets, titles: titles}

		chain := fallback.New[models.TypeCount]("options", s.logger, metrics.ObserveFallback).
			Add("db_counts", func(ctx context.Context) ([]models.TypeCount, error) {
				for _, title := range titles {
					cq := q
					cq.FieldTitle = title
					cq.Status = ""
					counts, err := s.store.CountsByType(ctx, cq)
					if err != nil {
						return nil, err
					}
					if merged := mergeCounts(counts); len(merged) > 0 {
						return merged, nil
					}
				}
				return nil, nil
			}).
			Add("grouped_texts", func(ctx context.Context) ([]models.TypeCount, error) {
				for _, title := range titles {
					gq := q
					gq.FieldTitle = title
					gq.Status = ""
					records, err := s.store.TextsGroupedByTicket(ctx, gq)
					if err != nil {
						return nil, err
					}
					values := make(map[string]int)
					for _, r := range records {
						if t, ok := tags.Allowed(r.InquiryType); ok {
							values[t]++
						}
					}
					if len(values) > 0 {
						return countTypes(values), nil
					}
				}
				return nil, nil
			}).
			AddIf(vendor, "vendor_values", func(ctx context.Context) ([]models.TypeCount, error) {
				f, ok, err := field.get(ctx)
				if err != nil || !ok {
					return nil, err
				}
				return s.vendorFieldCounts(ctx, q, f)
			}).
			AddIf(vendor, "vendor_options", func(ctx context.Context) ([]models.TypeCount, error) {
				f, ok, err := field.get(ctx)
				if err != nil || !ok {
					return nil, err
				}
				out := make([]models.TypeCount, 0, len(f.Options))
				for _, o := range f.Options {
					out = append(out, models.TypeCount{InquiryType: o})
				}
				return out, nil
			})

		res := chain.Run(ctx)
		if res.Items == nil {
			return []models.TypeCount{}, nil
		}
		return res.Items, nil
	})
}

// fieldLookup fetches the vendor's inquiry-type field once per request.
type fieldLookup struct {
	src    TicketSource
	titles []string
	done   bool
	field  zendesk.TicketField
	found  bool
	err    error
}

func (l *fieldLookup) get(ctx context.Context) (zendesk.TicketField, bool, error) {
	if !l.done {
		l.done = true
		fields, err := l.src.TicketFields(ctx)
		if err != nil {
			l.err = err
		} else {
			l.field, l.found = zendesk.FindField(fields, l.titles)
		}
	}
	return l.field, l.found, l.err
}

func (s *Service) vendorFieldCounts(ctx context.Context, q models.Query, f zendesk.TicketField) ([]models.TypeCount, error) {
	from, to, err := dayRange(q)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.IncrementalTickets(ctx, from, 0)
	if err != nil {
		return nil, err
	}

	values := make(map[string]int)
	for _, t := range tickets {
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		for _, cf := range t.CustomFields {
			if cf.ID != f.ID {
				continue
			}
			for _, v := range tags.SplitMulti(cf.Value) {
				if tags.IsAllowed(v) {
					values[v]++
				}
			}
		}
	}
	return countTypes(values), nil
}

// Records returns the grouped records of one inquiry type. When the query's
// status yields nothing, closed tickets are tried, then the live-chat vendor.
func (s *Service) Records(ctx context.Context, q models.Query, inquiryType string) ([]models.InquiryRecord, string, error) {
	q = s.Normalize(q)
	target := tags.Normalize(inquiryType)

	byType := func(status string) func(context.Context) ([]models.InquiryRecord, error) {
		return func(ctx context.Context) ([]models.InquiryRecord, error) {
			gq := q
			gq.Status = status
			records, err := s.store.TextsGroupedByTicket(ctx, gq)
			if err != nil {
				return nil, err
			}
			return filterType(records, target), nil
		}
	}

	chats := s.chats != nil && s.chats.Enabled() && q.Includes(models.SourceChannel) && target != ""
	chain := fallback.New[models.InquiryRecord]("records", s.logger, metrics.ObserveFallback).
		Add("as_given", byType(q.Status)).
		AddIf(q.Status != "closed", "closed", byType("closed")).
		AddIf(chats, "live_chat", func(ctx context.Context) ([]models.InquiryRecord, error) {
			return s.chatRecords(ctx, q, target)
		})

	res := chain.Run(ctx)
	if res.Items == nil && ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	return res.Items, res.Source, nil
}

// filterType keeps records whose normalized inquiry type equals target. An
// empty target keeps every allowed type.
func filterType(records []models.InquiryRecord, target string) []models.InquiryRecord {
	var out []models.InquiryRecord
	for _, r := range records {
		t := tags.Normalize(r.InquiryType)
		if target == "" {
			if !tags.IsAllowed(t) {
				continue
			}
		} else if t != target {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Service) chatRecords(ctx context.Context, q models.Query, target string) ([]models.InquiryRecord, error) {
	from, to, err := dayRange(q)
	if err != nil {
		return nil, err
	}
	chats, err := s.chats.ListUserChats(ctx, channeltalk.ChatQuery{From: from, To: to, Limit: maxChatRecords * 5})
	if err != nil {
		return nil, err
	}

	var out []models.InquiryRecord
	for _, ch := range chats {
		if !hasTag(ch.Tags, target) {
			continue
		}
		msgs, err := s.chats.ListMessages(ctx, ch.ID, 0)
		if err != nil {
			return out, err
		}
		rendered := make([]transcript.Message, 0, len(msgs))
		for _, m := range msgs {
			rendered = append(rendered, transcript.Message{SenderRole: m.PersonType, Text: m.PlainText, CreatedAt: m.CreatedAt})
		}
		out = append(out, models.InquiryRecord{
			InquiryType: target,
			TicketID:    ch.ID,
			TicketName:  ch.Name,
			CreatedAt:   ch.CreatedAt.UTC().Format(time.RFC3339),
			TextType:    models.TextTypeMessagesBlock,
			TextValue:   transcript.RenderMessages(rendered),
		})
		if len(out) >= maxChatRecords {
			break
		}
	}
	return out, nil
}

func hasTag(values []string, target string) bool {
	for _, v := range values {
		if tags.Normalize(v) == target {
			return true
		}
	}
	return false
}
