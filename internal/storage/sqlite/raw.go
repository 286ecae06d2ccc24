package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/pkg/logger"
)

// inTx runs fn inside a transaction and commits when it returns nil.
func (c *Client) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Client) UpsertZendeskTickets(ctx context.Context, tickets []models.ZendeskTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	query := `
		INSERT INTO raw_zendesk_tickets (id, created_at, updated_at, subject, description, requester_id,
			org_id, status, priority, channel, tags, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			subject = excluded.subject,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			tags = excluded.tags,
			raw_json = excluded.raw_json
	`

	err := c.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare ticket upsert: %w", err)
		}
		defer stmt.Close()

		for _, t := range tickets {
			tagsJSON, _ := json.Marshal(t.Tags)
			_, err := stmt.ExecContext(ctx,
				t.ID,
				formatTime(t.CreatedAt),
				formatTime(t.UpdatedAt),
				t.Subject,
				t.Description,
				t.RequesterID,
				t.OrganizationID,
				t.Status,
				t.Priority,
				t.Channel,
				string(tagsJSON),
				t.RawJSON,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert ticket %d: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Zendesk tickets upserted", zap.Int("count", len(tickets)))
	return nil
}

func (c *Client) UpsertZendeskComments(ctx context.Context, comments []models.ZendeskComment) error {
	if len(comments) == 0 {
		return nil
	}

	query := `
		INSERT INTO raw_zendesk_comments (ticket_id, comment_id, author_id, created_at, body, raw_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticket_id, comment_id) DO UPDATE SET
			body = excluded.body,
			raw_json = excluded.raw_json
	`

	return c.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare comment upsert: %w", err)
		}
		defer stmt.Close()

		for _, cm := range comments {
			_, err := stmt.ExecContext(ctx, cm.TicketID, cm.CommentID, cm.AuthorID, formatTime(cm.CreatedAt), cm.Body, cm.RawJSON)
			if err != nil {
				return fmt.Errorf("failed to upsert comment %d/%d: %w", cm.TicketID, cm.CommentID, err)
			}
		}
		return nil
	})
}

func (c *Client) UpsertTicketFieldValues(ctx context.Context, values []models.TicketFieldValue) error {
	if len(values) == 0 {
		return nil
	}

	query := `
		INSERT INTO ticket_field_values (ticket_id, field_id, field_title, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id, field_id) DO UPDATE SET
			field_title = excluded.field_title,
			value = excluded.value
	`

	return c.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare field value upsert: %w", err)
		}
		defer stmt.Close()

		for _, v := range values {
			if _, err := stmt.ExecContext(ctx, v.TicketID, v.FieldID, v.FieldTitle, v.Value); err != nil {
				return fmt.Errorf("failed to upsert field value %d/%d: %w", v.TicketID, v.FieldID, err)
			}
		}
		return nil
	})
}

func (c *Client) UpsertChannelConversations(ctx context.Context, convs []models.ChannelConversation) error {
	if len(convs) == 0 {
		return nil
	}

	query := `
		INSERT INTO raw_channel_conversations (id, created_at, updated_at, name, tags, state, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			name = excluded.name,
			tags = excluded.tags,
			state = excluded.state,
			raw_json = excluded.raw_json
	`

	return c.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare conversation upsert: %w", err)
		}
		defer stmt.Close()

		for _, cv := range convs {
			tagsJSON, _ := json.Marshal(cv.Tags)
			_, err := stmt.ExecContext(ctx, cv.ID, formatTime(cv.CreatedAt), formatTime(cv.UpdatedAt), cv.Name, string(tagsJSON), cv.State, cv.RawJSON)
			if err != nil {
				return fmt.Errorf("failed to upsert conversation %s: %w", cv.ID, err)
			}
		}
		return nil
	})
}

func (c *Client) UpsertChannelMessages(ctx context.Context, msgs []models.ChannelMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	query := `
		INSERT INTO raw_channel_messages (conversation_id, message_id, created_at, sender, text, raw_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, message_id) DO UPDATE SET
			text = excluded.text,
			raw_json = excluded.raw_json
	`

	return c.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare message upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			_, err := stmt.ExecContext(ctx, m.ConversationID, m.MessageID, formatTime(m.CreatedAt), m.Sender, m.Text, m.RawJSON)
			if err != nil {
				return fmt.Errorf("failed to upsert message %s/%s: %w", m.ConversationID, m.MessageID, err)
			}
		}
		return nil
	})
}
