// Package channeltalk reads user chats, their messages and chat tags from
// the Channel Talk open API.
package channeltalk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/cache"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/internal/vendors"
	"github.com/nicetoya86/ticket/pkg/config"
	"github.com/nicetoya86/ticket/pkg/retry"
)

const (
	PageSize        = 200
	MaxMessagePages = 20
	windowDays      = 30
	CacheTTL        = 5 * time.Minute
	cacheNamespace  = "channeltalk"
)

var kst = time.FixedZone("KST", 9*60*60)

// DefaultStates are the chat states listed when a query names none.
var DefaultStates = []string{"opened", "closed"}

type UserChat struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	State     string          `json:"state"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	PersonType string    `json:"personType"`
	PlainText  string    `json:"plainText"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ChatTag struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// ChatQuery selects chats created within [From, To]. Limit <= 0 means no
// limit.
type ChatQuery struct {
	From   time.Time
	To     time.Time
	States []string
	Limit  int
}

type Client struct {
	baseURL   string
	key       string
	secret    string
	transport *vendors.Transport
	cache     cache.Cache
	logger    *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.transport.WithRetry(cfg) }
}

// WithCache caches listing results for CacheTTL.
func WithCache(ch cache.Cache) Option {
	return func(c *Client) { c.cache = ch }
}

func NewClient(cfg config.ChannelTalkConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		key:       cfg.AccessKey,
		secret:    cfg.AccessSecret,
		transport: vendors.NewTransport("channeltalk", time.Duration(cfg.TimeoutSec)*time.Second, logger),
		cache:     cache.Nop{},
		logger:    logger,
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.channel.io"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c.key != "" && c.secret != ""
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("X-Access-Key", c.key)
	req.Header.Set("X-Access-Secret", c.secret)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	if !c.Enabled() {
		return vendors.ErrMissingCredentials
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.transport.GetJSON(ctx, u, c.auth, dst)
}

// The API reports times as epoch milliseconds.
type rawChat struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Tags      any    `json:"tags"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type chatsPage struct {
	UserChats []json.RawMessage `json:"userChats"`
	Next      string            `json:"next"`
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func decodeChat(raw json.RawMessage) (UserChat, error) {
	var rc rawChat
	if err := json.Unmarshal(raw, &rc); err != nil {
		return UserChat{}, fmt.Errorf("failed to decode user chat: %w", err)
	}
	return UserChat{
		ID:        rc.ID,
		Name:      rc.Name,
		State:     rc.State,
		Tags:      tags.SplitMulti(rc.Tags),
		CreatedAt: fromMillis(rc.CreatedAt),
		UpdatedAt: fromMillis(rc.UpdatedAt),
		Raw:       raw,
	}, nil
}

// ListUserChats walks the range in 30-day windows for each state and returns
// the chats deduplicated by ID, stopping once Limit chats are collected.
func (c *Client) ListUserChats(ctx context.Context, q ChatQuery) ([]UserChat, error) {
	states := q.States
	if len(states) == 0 {
		states = DefaultStates
	}

	key := cache.Key(cacheNamespace+":chats",
		q.From.Format(time.RFC3339), q.To.Format(time.RFC3339),
		strings.Join(states, ","), strconv.Itoa(q.Limit))
	var cached []UserChat
	if ok, _ := c.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	seen := make(map[string]struct{})
	var out []UserChat
	full := func() bool { return q.Limit > 0 && len(out) >= q.Limit }

	for _, w := range windows(q.From, q.To) {
		for _, state := range states {
			if full() {
				break
			}
			chats, err := c.listWindow(ctx, w, state, q.Limit-len(out))
			if err != nil {
				return out, err
			}
			for _, ch := range chats {
				if _, dup := seen[ch.ID]; dup {
					continue
				}
				seen[ch.ID] = struct{}{}
				out = append(out, ch)
				if full() {
					break
				}
			}
		}
	}

	if err := c.cache.Set(ctx, key, out, CacheTTL); err != nil {
		c.logger.Warn("Failed to cache user chats", zap.Error(err))
	}
	c.logger.Debug("Listed user chats",
		zap.Time("from", q.From),
		zap.Time("to", q.To),
		zap.Int("count", len(out)),
	)
	return out, nil
}

type window struct{ from, to time.Time }

func windows(from, to time.Time) []window {
	if to.Before(from) {
		return nil
	}
	var out []window
	for start := from; !start.After(to); start = start.AddDate(0, 0, windowDays) {
		end := start.AddDate(0, 0, windowDays).Add(-time.Millisecond)
		if end.After(to) {
			end = to
		}
		out = append(out, window{from: start, to: end})
	}
	return out
}

func (c *Client) listWindow(ctx context.Context, w window, state string, remaining int) ([]UserChat, error) {
	var out []UserChat
	cursor := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(PageSize))
		q.Set("state", state)
		q.Set("sortOrder", "asc")
		q.Set("startDate", w.from.In(kst).Format("2006-01-02"))
		q.Set("endDate", w.to.In(kst).Format("2006-01-02"))
		q.Set("createdAtFrom", w.from.In(kst).Format(time.RFC3339))
		q.Set("createdAtTo", w.to.In(kst).Format(time.RFC3339))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page chatsPage
		if err := c.get(ctx, "/open/v5/user-chats", q, &page); err != nil {
			return out, fmt.Errorf("failed to list %s user chats: %w", state, err)
		}
		for _, raw := range page.UserChats {
			ch, err := decodeChat(raw)
			if err != nil {
				return out, err
			}
			if ch.CreatedAt.Before(w.from) || ch.CreatedAt.After(w.to) {
				continue
			}
			out = append(out, ch)
		}

		if page.Next == "" || page.Next == cursor || len(page.UserChats) == 0 {
			return out, nil
		}
		if remaining > 0 && len(out) >= remaining {
			return out, nil
		}
		cursor = page.Next
	}
}

type rawMessage struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	PersonType string `json:"personType"`
	PlainText  string `json:"plainText"`
	CreatedAt  int64  `json:"createdAt"`
}

type messagesPage struct {
	Messages []rawMessage `json:"messages"`
	Next     string       `json:"next"`
}

// ListMessages returns up to limit messages of a chat, oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = PageSize * MaxMessagePages
	}
	pageSize := limit
	if pageSize > PageSize {
		pageSize = PageSize
	}

	var out []Message
	cursor := ""
	for page := 0; page < MaxMessagePages && len(out) < limit; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("sortOrder", "asc")
		if cursor != "" {
			q.Set("since", cursor)
		}

		var resp messagesPage
		path := "/open/v5/user-chats/" + url.PathEscape(chatID) + "/messages"
		if err := c.get(ctx, path, q, &resp); err != nil {
			return out, fmt.Errorf("failed to list messages for chat %s: %w", chatID, err)
		}
		for _, m := range resp.Messages {
			out = append(out, Message{
				ID:         m.ID,
				ChatID:     chatID,
				PersonType: m.PersonType,
				PlainText:  m.PlainText,
				CreatedAt:  fromMillis(m.CreatedAt),
			})
		}
		if resp.Next == "" || resp.Next == cursor || len(resp.Messages) == 0 {
			break
		}
		cursor = resp.Next
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListChatTags returns the workspace's chat tags.
func (c *Client) ListChatTags(ctx context.Context) ([]ChatTag, error) {
	key := cache.Key(cacheNamespace+":tags", c.key)
	var cached []ChatTag
	if ok, _ := c.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	var resp struct {
		ChatTags []ChatTag `json:"chatTags"`
	}
	if err := c.get(ctx, "/open/v5/chat-tags", url.Values{"limit": {"500"}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list chat tags: %w", err)
	}

	if err := c.cache.Set(ctx, key, resp.ChatTags, CacheTTL); err != nil {
		c.logger.Warn("Failed to cache chat tags", zap.Error(err))
	}
	return resp.ChatTags, nil
}

func (ch UserChat) ToModel() models.ChannelConversation {
	return models.ChannelConversation{
		ID:        ch.ID,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
		Name:      ch.Name,
		Tags:      ch.Tags,
		State:     ch.State,
		RawJSON:   string(ch.Raw),
	}
}

func (m Message) ToModel() models.ChannelMessage {
	raw, _ := json.Marshal(m)
	return models.ChannelMessage{
		ConversationID: m.ChatID,
		MessageID:      m.ID,
		CreatedAt:      m.CreatedAt,
		Sender:         m.PersonType,
		Text:           m.PlainText,
		RawJSON:        string(raw),
	}
}
