package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/internal/transcript"
)

const (
	minDate = "0000-01-01"
	maxDate = "9999-12-31"
)

// Dates in a query are KST calendar days.
const ticketFilter = `date(t.created_at, '+9 hours') BETWEEN ? AND ? AND (? = '' OR t.status = ?)`
const chatFilter = `date(cv.created_at, '+9 hours') BETWEEN ? AND ? AND (? = '' OR cv.state = ?)`

func dateBounds(q models.Query) (string, string) {
	from, to := q.From, q.To
	if from == "" {
		from = minDate
	}
	if to == "" {
		to = maxDate
	}
	return from, to
}

func ticketArgs(q models.Query) []any {
	from, to := dateBounds(q)
	return []any{from, to, q.Status, q.Status}
}

// chatState maps a ticket status onto the two live-chat states.
func chatState(status string) string {
	switch strings.ToLower(status) {
	case "":
		return ""
	case "closed", "solved":
		return "closed"
	default:
		return "opened"
	}
}

func chatArgs(q models.Query) []any {
	from, to := dateBounds(q)
	state := chatState(q.Status)
	return []any{from, to, state, state}
}

// TextsGroupedByTicket returns one record per ticket holding all of its
// comments, and one per chat holding its rendered messages.
func (c *Client) TextsGroupedByTicket(ctx context.Context, q models.Query) ([]models.InquiryRecord, error) {
	var out []models.InquiryRecord
	if q.Includes(models.SourceZendesk) {
		recs, err := c.groupedTickets(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	if q.Includes(models.SourceChannel) {
		recs, err := c.groupedChats(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

type ticketRow struct {
	id          int64
	createdAt   string
	description string
	fieldValue  string
}

func (c *Client) ticketRows(ctx context.Context, q models.Query) ([]ticketRow, error) {
	query := `
		SELECT t.id, t.created_at, COALESCE(t.description, ''), COALESCE(f.value, '')
		FROM raw_zendesk_tickets t
		LEFT JOIN ticket_field_values f ON f.ticket_id = t.id AND f.field_title = ?
		WHERE ` + ticketFilter + `
		ORDER BY t.created_at, t.id
	`
	args := append([]any{q.FieldTitle}, ticketArgs(q)...)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var out []ticketRow
	for rows.Next() {
		var r ticketRow
		if err := rows.Scan(&r.id, &r.createdAt, &r.description, &r.fieldValue); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Client) ticketComments(ctx context.Context, q models.Query) (map[int64][]string, error) {
	query := `
		SELECT cm.ticket_id, COALESCE(cm.body, '')
		FROM raw_zendesk_comments cm
		JOIN raw_zendesk_tickets t ON t.id = cm.ticket_id
		WHERE ` + ticketFilter + `
		ORDER BY cm.ticket_id, cm.created_at, cm.comment_id
	`
	rows, err := c.db.QueryContext(ctx, query, ticketArgs(q)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out[id] = append(out[id], body)
	}
	return out, rows.Err()
}

func (c *Client) groupedTickets(ctx context.Context, q models.Query) ([]models.InquiryRecord, error) {
	tickets, err := c.ticketRows(ctx, q)
	if err != nil {
		return nil, err
	}
	comments, err := c.ticketComments(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]models.InquiryRecord, 0, len(tickets))
	for _, t := range tickets {
		text := strings.Join(comments[t.id], "\n")
		if text == "" {
			text = t.description
		}
		out = append(out, models.InquiryRecord{
			InquiryType: t.fieldValue,
			TicketID:    strconv.FormatInt(t.id, 10),
			CreatedAt:   t.createdAt,
			TextType:    models.TextTypeCommentsBlock,
			TextValue:   text,
		})
	}
	return out, nil
}

type chatRow struct {
	id        string
	createdAt string
	name      string
	tags      string
}

func (c *Client) chatRows(ctx context.Context, q models.Query) ([]chatRow, error) {
	query := `
		SELECT cv.id, cv.created_at, COALESCE(cv.name, ''), COALESCE(cv.tags, '')
		FROM raw_channel_conversations cv
		WHERE ` + chatFilter + `
		ORDER BY cv.created_at, cv.id
	`
	rows, err := c.db.QueryContext(ctx, query, chatArgs(q)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []chatRow
	for rows.Next() {
		var r chatRow
		if err := rows.Scan(&r.id, &r.createdAt, &r.name, &r.tags); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *Client) chatMessages(ctx context.Context, q models.Query) (map[string][]transcript.Message, error) {
	query := `
		SELECT m.conversation_id, COALESCE(m.sender, ''), COALESCE(m.text, ''), m.created_at
		FROM raw_channel_messages m
		JOIN raw_channel_conversations cv ON cv.id = m.conversation_id
		WHERE ` + chatFilter + `
		ORDER BY m.conversation_id, m.created_at, m.message_id
	`
	rows, err := c.db.QueryContext(ctx, query, chatArgs(q)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]transcript.Message)
	for rows.Next() {
		var id, sender, text, createdAt string
		if err := rows.Scan(&id, &sender, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out[id] = append(out[id], transcript.Message{SenderRole: sender, Text: text, CreatedAt: parseTime(createdAt)})
	}
	return out, rows.Err()
}

func (c *Client) groupedChats(ctx context.Context, q models.Query) ([]models.InquiryRecord, error) {
	chats, err := c.chatRows(ctx, q)
	if err != nil {
		return nil, err
	}
	msgs, err := c.chatMessages(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]models.InquiryRecord, 0, len(chats))
	for _, ch := range chats {
		out = append(out, models.InquiryRecord{
			InquiryType: tags.Primary(ch.tags),
			TicketID:    ch.id,
			TicketName:  ch.name,
			CreatedAt:   ch.createdAt,
			TextType:    models.TextTypeMessagesBlock,
			TextValue:   transcript.RenderMessages(msgs[ch.id]),
		})
	}
	return out, nil
}

// TextsByType returns a body record per ticket followed by one record per
// comment, and one record per chat message.
func (c *Client) TextsByType(ctx context.Context, q models.Query) ([]models.InquiryRecord, error) {
	var out []models.InquiryRecord

	if q.Includes(models.SourceZendesk) {
		tickets, err := c.ticketRows(ctx, q)
		if err != nil {
			return nil, err
		}
		comments, err := c.ticketComments(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, t := range tickets {
			base := models.InquiryRecord{
				InquiryType: t.fieldValue,
				TicketID:    strconv.FormatInt(t.id, 10),
				CreatedAt:   t.createdAt,
			}
			body := base
			body.TextType = models.TextTypeBody
			body.TextValue = t.description
			out = append(out, body)
			for _, text := range comments[t.id] {
				cm := base
				cm.TextType = models.TextTypeComment
				cm.TextValue = text
				out = append(out, cm)
			}
		}
	}

	if q.Includes(models.SourceChannel) {
		chats, err := c.chatRows(ctx, q)
		if err != nil {
			return nil, err
		}
		msgs, err := c.chatMessages(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, ch := range chats {
			for _, m := range msgs[ch.id] {
				out = append(out, models.InquiryRecord{
					InquiryType: tags.Primary(ch.tags),
					TicketID:    ch.id,
					TicketName:  ch.name,
					CreatedAt:   formatTime(m.CreatedAt),
					TextType:    models.TextTypeComment,
					TextValue:   transcript.RenderMessages([]transcript.Message{m}),
				})
			}
		}
	}
	return out, nil
}

// CountsByType counts tickets per raw inquiry-type value. Chats count under
// their primary allowed tag.
func (c *Client) CountsByType(ctx context.Context, q models.Query) ([]models.TypeCount, error) {
	counts := make(map[string]int)

	if q.Includes(models.SourceZendesk) {
		query := `
			SELECT f.value, COUNT(DISTINCT t.id)
			FROM raw_zendesk_tickets t
			JOIN ticket_field_values f ON f.ticket_id = t.id AND f.field_title = ?
			WHERE ` + ticketFilter + ` AND COALESCE(f.value, '') != ''
			GROUP BY f.value
		`
		args := append([]any{q.FieldTitle}, ticketArgs(q)...)
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to count tickets by type: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var value string
			var n int
			if err := rows.Scan(&value, &n); err != nil {
				return nil, fmt.Errorf("failed to scan type count: %w", err)
			}
			counts[value] += n
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if q.Includes(models.SourceChannel) {
		chats, err := c.chatRows(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, ch := range chats {
			if t := tags.Primary(ch.tags); t != "" {
				counts[t]++
			}
		}
	}

	return sortCounts(counts), nil
}

func sortCounts(counts map[string]int) []models.TypeCount {
	out := make([]models.TypeCount, 0, len(counts))
	for t, n := range counts {
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

// Heatmap counts tickets and chats by KST weekday (0 = Sunday) and hour.
// An empty sources list covers both.
func (c *Client) Heatmap(ctx context.Context, from, to string, sources []string) ([]models.HeatmapCell, error) {
	q := models.Query{From: from, To: to}
	lo, hi := dateBounds(q)

	tables := map[string]string{
		models.SourceZendesk: "raw_zendesk_tickets",
		models.SourceChannel: "raw_channel_conversations",
	}
	want := sources
	if len(want) == 0 {
		want = []string{models.SourceZendesk, models.SourceChannel}
	}

	type cellKey struct{ weekday, hour int }
	cells := make(map[cellKey]int)
	for _, src := range want {
		table, ok := tables[src]
		if !ok {
			continue
		}
		query := fmt.Sprintf(`
			SELECT CAST(strftime('%%w', created_at, '+9 hours') AS INTEGER),
			       CAST(strftime('%%H', created_at, '+9 hours') AS INTEGER),
			       COUNT(*)
			FROM %s
			WHERE date(created_at, '+9 hours') BETWEEN ? AND ?
			GROUP BY 1, 2
		`, table)
		rows, err := c.db.QueryContext(ctx, query, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("failed to query heatmap for %s: %w", src, err)
		}
		for rows.Next() {
			var k cellKey
			var n int
			if err := rows.Scan(&k.weekday, &k.hour, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan heatmap cell: %w", err)
			}
			cells[k] += n
		}
		rows.Close()
	}

	out := make([]models.HeatmapCell, 0, len(cells))
	for k, n := range cells {
		out = append(out, models.HeatmapCell{Weekday: k.weekday, Hour: k.hour, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}
