package models

import "time"

type TextType string

const (
	TextTypeBody          TextType = "body"
	TextTypeComment       TextType = "comment"
	TextTypeMessagesBlock TextType = "messages_block"
	TextTypeCommentsBlock TextType = "comments_block"
)

// InquiryRecord is one retrieved text unit. TicketName is a display name
// (organisation or hospital) and must never appear in cleaned output text.
type InquiryRecord struct {
	InquiryType string   `json:"inquiry_type"`
	TicketID    string   `json:"ticket_id"`
	TicketName  string   `json:"ticket_name,omitempty"`
	CreatedAt   string   `json:"created_at"`
	TextType    TextType `json:"text_type"`
	TextValue   string   `json:"text_value"`
}

const (
	SourceZendesk = "zendesk"
	SourceChannel = "channel"
)

// Query carries the filter shared by every record fetch. Dates are
// inclusive YYYY-MM-DD strings.
type Query struct {
	From       string
	To         string
	FieldTitle string
	Status     string
	Source     string
}

// Includes reports whether the query covers records from source. An empty
// Source covers every source.
func (q Query) Includes(source string) bool {
	return q.Source == "" || q.Source == source
}

type TypeCount struct {
	InquiryType string `json:"inquiry_type"`
	TicketCount int    `json:"ticket_count"`
}

type HeatmapCell struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Count   int `json:"count"`
}

type ZendeskTicket struct {
	ID             int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Subject        string
	Description    string
	RequesterID    int64
	OrganizationID int64
	Status         string
	Priority       string
	Channel        string
	Tags           []string
	RawJSON        string
}

type ZendeskComment struct {
	TicketID  int64
	CommentID int64
	AuthorID  int64
	CreatedAt time.Time
	Body      string
	RawJSON   string
}

type TicketFieldValue struct {
	TicketID   int64
	FieldID    int64
	FieldTitle string
	Value      string
}

type ChannelConversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string
	Tags      []string
	State     string
	RawJSON   string
}

type ChannelMessage struct {
	ConversationID string
	MessageID      string
	CreatedAt      time.Time
	Sender         string
	Text           string
	RawJSON        string
}

type Stopword struct {
	ID        int       `json:"id"`
	Locale    string    `json:"locale"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

type LabelMapping struct {
	ID         int       `json:"id"`
	Source     string    `json:"source"`
	Label      string    `json:"label"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

type AnalysisRecord struct {
	ID          string    `json:"id"`
	InquiryType string    `json:"inquiry_type"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	Summary     string    `json:"summary"`
	ResultJSON  string    `json:"-"`
	UsedLLM     bool      `json:"used_llm"`
	LatencyMS   int       `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type Checkpoint struct {
	Source string
	Type   string
	Value  string
}

// Uncategorized is the category of an interaction whose label has no
// mapping.
const Uncategorized = "uncategorized"

type Category struct {
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parent_id,omitempty"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

// Interaction is a ticket or chat in the unified list. Label is the raw
// inquiry type and CategoryID the category its label mapping points to.
type Interaction struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	CreatedAt  string   `json:"created_at"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	Label      string   `json:"label"`
	CategoryID string   `json:"category_id"`
}

// InteractionQuery filters the unified list. Empty slices match everything;
// Exclude drops interactions carrying any of its tags.
type InteractionQuery struct {
	From        string
	To          string
	FieldTitle  string
	Sources     []string
	CategoryIDs []string
	Search      string
	Exclude     []string
	Page        int
	PageSize    int
}

type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Count      int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Overview holds daily totals over a range and the category breakdown of
// its last day.
type Overview struct {
	Totals     []DailyCount    `json:"totals"`
	ByCategory []CategoryCount `json:"by_category"`
}
