// Package ingestion copies tickets and chats from the helpdesk vendors into
// the local store.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/vendors/channeltalk"
	"github.com/nicetoya86/ticket/internal/vendors/zendesk"
	"github.com/nicetoya86/ticket/pkg/logger"
)

const (
	checkpointType = "timestamp"

	// defaultLookback is where a first run starts when no checkpoint exists.
	defaultLookback = 7 * 24 * time.Hour

	// commentTickets bounds how many tickets of one run get their comments
	// fetched.
	commentTickets = 50
	chatLimit      = 1000
)

// ErrNotConfigured is returned when the requested vendor has no
// credentials.
var ErrNotConfigured = errors.New("source is not configured")

type Store interface {
	UpsertZendeskTickets(ctx context.Context, tickets []models.ZendeskTicket) error
	UpsertZendeskComments(ctx context.Context, comments []models.ZendeskComment) error
	UpsertTicketFieldValues(ctx context.Context, values []models.TicketFieldValue) error
	UpsertChannelConversations(ctx context.Context, convs []models.ChannelConversation) error
	UpsertChannelMessages(ctx context.Context, msgs []models.ChannelMessage) error
	GetCheckpoint(ctx context.Context, source, checkpointType string) (string, bool, error)
	SetCheckpoint(ctx context.Context, cp models.Checkpoint) error
}

type TicketSource interface {
	Enabled() bool
	TicketFields(ctx context.Context) ([]zendesk.TicketField, error)
	IncrementalTickets(ctx context.Context, since time.Time, maxPages int) ([]zendesk.Ticket, error)
	TicketComments(ctx context.Context, ticketID int64, limit int) ([]zendesk.Comment, error)
}

type ChatSource interface {
	Enabled() bool
	ListUserChats(ctx context.Context, q channeltalk.ChatQuery) ([]channeltalk.UserChat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]channeltalk.Message, error)
}

// Invalidator drops derived views once new raw data has landed.
type Invalidator interface {
	InvalidateCache(ctx context.Context) error
}

// Report summarizes one ingestion run.
type Report struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	Tickets       int    `json:"tickets"`
	Comments      int    `json:"comments"`
	FieldValues   int    `json:"field_values"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Checkpoint    string `json:"checkpoint,omitempty"`
}

type Processor struct {
	store       Store
	tickets     TicketSource
	chats       ChatSource
	invalidator Invalidator
	now         func() time.Time
}

// NewProcessor wires the store to the vendors. Either vendor and the
// invalidator may be nil.
func NewProcessor(store Store, tickets TicketSource, chats ChatSource, invalidator Invalidator) *Processor {
	return &Processor{
		store:       store,
		tickets:     tickets,
		chats:       chats,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// IngestZendesk pulls tickets updated since the stored checkpoint, their
// inquiry field values and the comments of the first tickets, then moves
// the checkpoint to the newest update seen.
func (p *Processor) IngestZendesk(ctx context.Context) (*Report, error) {
	if p.tickets == nil || !p.tickets.Enabled() {
		return nil, fmt.Errorf("zendesk: %w", ErrNotConfigured)
	}
	report := &Report{RunID: uuid.NewString(), Source: models.SourceZendesk}
	log := logger.GetLogger().With(zap.String("run_id", report.RunID), zap.String("source", report.Source))

	since, err := p.checkpoint(ctx, models.SourceZendesk)
	if err != nil {
		return nil, err
	}
	log.Info("Starting ticket ingestion", zap.Time("since", since))

	fields, err := p.tickets.TicketFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket fields: %w", err)
	}
	titles := make(map[int64]string, len(fields))
	for _, f := range fields {
		titles[f.ID] = f.Title
	}

	tickets, err := p.tickets.IncrementalTickets(ctx, since, zendesk.MaxIncrementalPages)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets: %w", err)
	}

	rows := make([]models.ZendeskTicket, 0, len(tickets))
	var values []models.TicketFieldValue
	newest := since
	for _, t := range tickets {
		rows = append(rows, t.ToModel())
		values = append(values, t.FieldValues(titles)...)
		if t.UpdatedAt.After(newest) {
			newest = t.UpdatedAt
		}
	}
	if err := p.store.UpsertZendeskTickets(ctx, rows); err != nil {
		return nil, err
	}
	if err := p.store.UpsertTicketFieldValues(ctx, values); err != nil {
		return nil, err
	}
	report.Tickets = len(rows)
	report.FieldValues = len(values)

	for i, t := range tickets {
		if i >= commentTickets {
			break
		}
		comments, err := p.tickets.TicketComments(ctx, t.ID, zendesk.MaxComments)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Failed to fetch comments", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		stored := make([]models.ZendeskComment, 0, len(comments))
		for _, c := range comments {
			stored = append(stored, c.ToModel(t.ID))
		}
		if err := p.store.UpsertZendeskComments(ctx, stored); err != nil {
			return nil, err
		}
		report.Comments += len(stored)
	}

	report.Checkpoint = newest.UTC().Format(time.RFC3339)
	if err := p.store.SetCheckpoint(ctx, models.Checkpoint{Source: models.SourceZendesk, Type: checkpointType, Value: report.Checkpoint}); err != nil {
		return nil, err
	}

	metrics.RecordsIngested.WithLabelValues(report.Source, "ticket").Add(float64(report.Tickets))
	metrics.RecordsIngested.WithLabelValues(report.Source, "comment").Add(float64(report.Comments))
	metrics.RecordsIngested.WithLabelValues(report.Source, "field_value").Add(float64(report.FieldValues))
	p.invalidate(ctx)

	log.Info("Ticket ingestion finished",
		zap.Int("tickets", report.Tickets),
		zap.Int("comments", report.Comments),
		zap.Int("field_values", report.FieldValues),
		zap.String("checkpoint", report.Checkpoint),
	)
	return report, nil
}

// IngestChannel pulls the chats created between from and to with their
// messages. A zero from resumes at the stored checkpoint; a zero to means
// now.
func (p *Processor) IngestChannel(ctx context.Context, from, to time.Time) (*Report, error) {
	if p.chats == nil || !p.chats.Enabled() {
		return nil, fmt.Errorf("channel talk: %w", ErrNotConfigured)
	}
	report := &Report{RunID: uuid.NewString(), Source: models.SourceChannel}
	log := logger.GetLogger().With(zap.String("run_id", report.RunID), zap.String("source", report.Source))

	if to.IsZero() {
		to = p.now()
	}
	if from.IsZero() {
		var err error
		if from, err = p.checkpoint(ctx, models.SourceChannel); err != nil {
			return nil, err
		}
	}
	log.Info("Starting chat ingestion", zap.Time("from", from), zap.Time("to", to))

	chats, err := p.chats.ListUserChats(ctx, channeltalk.ChatQuery{From: from, To: to, Limit: chatLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	convs := make([]models.ChannelConversation, 0, len(chats))
	for _, ch := range chats {
		convs = append(convs, ch.ToModel())
	}
	if err := p.store.UpsertChannelConversations(ctx, convs); err != nil {
		return nil, err
	}
	report.Conversations = len(convs)

	for _, ch := range chats {
		msgs, err := p.chats.ListMessages(ctx, ch.ID, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Failed to fetch messages", zap.String("chat_id", ch.ID), zap.Error(err))
			continue
		}
		stored := make([]models.ChannelMessage, 0, len(msgs))
		for _, m := range msgs {
			if m.ChatID == "" {
				m.ChatID = ch.ID
			}
			stored = append(stored, m.ToModel())
		}
		if err := p.store.UpsertChannelMessages(ctx, stored); err != nil {
			return nil, err
		}
		report.Messages += len(stored)
	}

	report.Checkpoint = to.UTC().Format(time.RFC3339)
	if err := p.store.SetCheckpoint(ctx, models.Checkpoint{Source: models.SourceChannel, Type: checkpointType, Value: report.Checkpoint}); err != nil {
		return nil, err
	}

	metrics.RecordsIngested.WithLabelValues(report.Source, "conversation").Add(float64(report.Conversations))
	metrics.RecordsIngested.WithLabelValues(report.Source, "message").Add(float64(report.Messages))
	p.invalidate(ctx)

	log.Info("Chat ingestion finished",
		zap.Int("conversations", report.Conversations),
		zap.Int("messages", report.Messages),
	)
	return report, nil
}

// checkpoint returns the stored resume point of source, or the default
// lookback when none is stored or it cannot be parsed.
func (p *Processor) checkpoint(ctx context.Context, source string) (time.Time, error) {
	value, ok, err := p.store.GetCheckpoint(ctx, source, checkpointType)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, nil
		}
		logger.Warn("Ignoring malformed checkpoint", zap.String("source", source), zap.String("value", value))
	}
	return p.now().Add(-defaultLookback), nil
}

func (p *Processor) invalidate(ctx context.Context) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.InvalidateCache(ctx); err != nil {
		logger.Warn("Failed to invalidate cache", zap.Error(err))
	}
}
