// Package zendesk reads tickets, comments and ticket fields from the Zendesk
// Support REST API.
package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/vendors"
	"github.com/nicetoya86/ticket/pkg/config"
	"github.com/nicetoya86/ticket/pkg/retry"
)

const (
	MaxIncrementalPages = 50
	MaxCommentPages     = 10
	MaxComments         = 200
	commentPageSize     = 100
)

type Ticket struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	RequesterID    int64     `json:"requester_id"`
	OrganizationID int64     `json:"organization_id"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	Tags           []string  `json:"tags"`
	Via            struct {
		Channel string `json:"channel"`
	} `json:"via"`
	CustomFields []CustomField   `json:"custom_fields"`
	Raw          json.RawMessage `json:"-"`
}

// CustomField values are strings, string arrays (multi-select) or null.
type CustomField struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

type Comment struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body"`
	PlainBody string    `json:"plain_body"`
	Public    bool      `json:"public"`
}

type TicketField struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Active  bool     `json:"active"`
	Options []string `json:"-"`
}

type Client struct {
	baseURL   string
	email     string
	token     string
	transport *vendors.Transport
	logger    *zap.Logger
}

type Option func(*Client)

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.transport.WithRetry(cfg) }
}

func NewClient(cfg config.ZendeskConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		email:     cfg.Email,
		token:     cfg.APIToken,
		transport: vendors.NewTransport("zendesk", time.Duration(cfg.TimeoutSec)*time.Second, logger),
		logger:    logger,
	}
	if cfg.Subdomain != "" {
		c.baseURL = fmt.Sprintf("https://%s.zendesk.com", cfg.Subdomain)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.email != "" && c.token != ""
}

func (c *Client) auth(req *http.Request) {
	req.SetBasicAuth(c.email+"/token", c.token)
}

func (c *Client) get(ctx context.Context, u string, dst any) error {
	if !c.Enabled() {
		return vendors.ErrMissingCredentials
	}
	if strings.HasPrefix(u, "/") {
		u = c.baseURL + u
	}
	return c.transport.GetJSON(ctx, u, c.auth, dst)
}

type incrementalPage struct {
	Tickets     []json.RawMessage `json:"tickets"`
	AfterURL    string            `json:"after_url"`
	EndOfStream bool              `json:"end_of_stream"`
}

// IncrementalTickets returns tickets updated since the given time, following
// the cursor for at most maxPages pages (MaxIncrementalPages when <= 0).
func (c *Client) IncrementalTickets(ctx context.Context, since time.Time, maxPages int) ([]Ticket, error) {
	if maxPages <= 0 {
		maxPages = MaxIncrementalPages
	}

	next := "/api/v2/incremental/tickets/cursor.json?start_time=" + strconv.FormatInt(since.Unix(), 10)
	var out []Ticket
	for page := 0; page < maxPages && next != ""; page++ {
		var resp incrementalPage
		if err := c.get(ctx, next, &resp); err != nil {
			return out, fmt.Errorf("failed to fetch incremental tickets: %w", err)
		}
		for _, raw := range resp.Tickets {
			t, err := decodeTicket(raw)
			if err != nil {
				return out, err
			}
			out = append(out, t)
		}
		if resp.EndOfStream {
			break
		}
		next = resp.AfterURL
	}

	c.logger.Debug("Fetched incremental tickets",
		zap.Time("since", since),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func decodeTicket(raw json.RawMessage) (Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("failed to decode ticket: %w", err)
	}
	t.Raw = raw
	return t, nil
}

// Ticket fetches a single ticket.
func (c *Client) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	var resp struct {
		Ticket json.RawMessage `json:"ticket"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v2/tickets/%d.json", id), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ticket %d: %w", id, err)
	}
	t, err := decodeTicket(resp.Ticket)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type commentPage struct {
	Comments []Comment `json:"comments"`
	Meta     struct {
		HasMore bool `json:"has_more"`
	} `json:"meta"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// TicketComments returns up to limit comments of a ticket in creation order.
func (c *Client) TicketComments(ctx context.Context, ticketID int64, limit int) ([]Comment, error) {
	if limit <= 0 || limit > MaxComments {
		limit = MaxComments
	}

	q := url.Values{}
	q.Set("page[size]", strconv.Itoa(commentPageSize))
	next := fmt.Sprintf("/api/v2/tickets/%d/comments.json?%s", ticketID, q.Encode())

	var out []Comment
	for page := 0; page < MaxCommentPages && next != "" && len(out) < limit; page++ {
		var resp commentPage
		if err := c.get(ctx, next, &resp); err != nil {
			return out, fmt.Errorf("failed to fetch comments for ticket %d: %w", ticketID, err)
		}
		out = append(out, resp.Comments...)
		if !resp.Meta.HasMore {
			break
		}
		next = resp.Links.Next
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fieldsPage struct {
	TicketFields []struct {
		ID                 int64  `json:"id"`
		Title              string `json:"title"`
		Active             bool   `json:"active"`
		CustomFieldOptions []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"custom_field_options"`
	} `json:"ticket_fields"`
	NextPage string `json:"next_page"`
}

// TicketFields lists every ticket field with its selectable option values.
func (c *Client) TicketFields(ctx context.Context) ([]TicketField, error) {
	next := "/api/v2/ticket_fields.json"
	var out []TicketField
	for page := 0; page < MaxIncrementalPages && next != ""; page++ {
		var resp fieldsPage
		if err := c.get(ctx, next, &resp); err != nil {
			return out, fmt.Errorf("failed to fetch ticket fields: %w", err)
		}
		for _, f := range resp.TicketFields {
			tf := TicketField{ID: f.ID, Title: f.Title, Active: f.Active}
			for _, o := range f.CustomFieldOptions {
				if o.Value != "" {
					tf.Options = append(tf.Options, o.Value)
				}
			}
			out = append(out, tf)
		}
		next = resp.NextPage
	}
	return out, nil
}

// FindField returns the first field whose title equals one of the
// candidates, tried in candidate order.
func FindField(fields []TicketField, candidates []string) (TicketField, bool) {
	for _, want := range candidates {
		for _, f := range fields {
			if strings.TrimSpace(f.Title) == strings.TrimSpace(want) {
				return f, true
			}
		}
	}
	return TicketField{}, false
}

// Text returns the best plain-text rendition of a comment.
func (cm Comment) Text() string {
	if s := strings.TrimSpace(cm.PlainBody); s != "" {
		return s
	}
	if s := strings.TrimSpace(cm.Body); s != "" {
		return s
	}
	return HTMLToText(cm.HTMLBody)
}

// HTMLToText flattens an HTML body to text, one line per block element.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ToModel converts an API ticket into the stored row.
func (t Ticket) ToModel() models.ZendeskTicket {
	return models.ZendeskTicket{
		ID:             t.ID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Subject:        t.Subject,
		Description:    t.Description,
		RequesterID:    t.RequesterID,
		OrganizationID: t.OrganizationID,
		Status:         t.Status,
		Priority:       t.Priority,
		Channel:        t.Via.Channel,
		Tags:           t.Tags,
		RawJSON:        string(t.Raw),
	}
}

// FieldValues returns the stored values of the ticket's custom fields whose
// IDs appear in titles. Multi-select values are kept as a JSON array.
func (t Ticket) FieldValues(titles map[int64]string) []models.TicketFieldValue {
	var out []models.TicketFieldValue
	for _, cf := range t.CustomFields {
		title, ok := titles[cf.ID]
		if !ok {
			continue
		}
		value := FieldValueString(cf.Value)
		if value == "" {
			continue
		}
		out = append(out, models.TicketFieldValue{
			TicketID:   t.ID,
			FieldID:    cf.ID,
			FieldTitle: title,
			Value:      value,
		})
	}
	return out
}

func FieldValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		if len(x) == 0 {
			return ""
		}
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func (cm Comment) ToModel(ticketID int64) models.ZendeskComment {
	raw, _ := json.Marshal(cm)
	return models.ZendeskComment{
		TicketID:  ticketID,
		CommentID: cm.ID,
		AuthorID:  cm.AuthorID,
		CreatedAt: cm.CreatedAt,
		Body:      cm.Text(),
		RawJSON:   string(raw),
	}
}
