package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nicetoya86/ticket/internal/storage/models"
)

const fieldTitle = "문의유형(고객)"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return c
}

func seed(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return ts
	}

	tickets := []models.ZendeskTicket{
		{ID: 1, CreatedAt: at("2024-03-04T01:00:00Z"), UpdatedAt: at("2024-03-04T02:00:00Z"), Description: "환불 요청", Status: "closed"},
		{ID: 2, CreatedAt: at("2024-03-04T02:00:00Z"), UpdatedAt: at("2024-03-04T02:00:00Z"), Description: "고객: 쿠폰 문의", Status: "open"},
		{ID: 3, CreatedAt: at("2024-02-01T02:00:00Z"), UpdatedAt: at("2024-02-01T02:00:00Z"), Description: "범위 밖", Status: "closed"},
	}
	if err := c.UpsertZendeskTickets(ctx, tickets); err != nil {
		t.Fatalf("UpsertZendeskTickets failed: %v", err)
	}

	comments := []models.ZendeskComment{
		{TicketID: 1, CommentID: 11, CreatedAt: at("2024-03-04T01:05:00Z"), Body: "고객: 두번째"},
		{TicketID: 1, CommentID: 10, CreatedAt: at("2024-03-04T01:01:00Z"), Body: "고객: 첫번째"},
	}
	if err := c.UpsertZendeskComments(ctx, comments); err != nil {
		t.Fatalf("UpsertZendeskComments failed: %v", err)
	}

	fields := []models.TicketFieldValue{
		{TicketID: 1, FieldID: 100, FieldTitle: fieldTitle, Value: `["환불"]`},
		{TicketID: 2, FieldID: 100, FieldTitle: fieldTitle, Value: "쿠폰"},
		{TicketID: 3, FieldID: 100, FieldTitle: fieldTitle, Value: "쿠폰"},
	}
	if err := c.UpsertTicketFieldValues(ctx, fields); err != nil {
		t.Fatalf("UpsertTicketFieldValues failed: %v", err)
	}

	convs := []models.ChannelConversation{
		{ID: "c1", CreatedAt: at("2024-03-05T03:00:00Z"), UpdatedAt: at("2024-03-05T03:10:00Z"), Name: "강남병원", Tags: []string{"병원_A", "쿠폰"}, State: "closed"},
	}
	if err := c.UpsertChannelConversations(ctx, convs); err != nil {
		t.Fatalf("UpsertChannelConversations failed: %v", err)
	}

	msgs := []models.ChannelMessage{
		{ConversationID: "c1", MessageID: "m2", CreatedAt: at("2024-03-05T03:01:00Z"), Sender: "manager", Text: "확인할게요"},
		{ConversationID: "c1", MessageID: "m1", CreatedAt: at("2024-03-05T03:00:00Z"), Sender: "user", Text: "쿠폰이 안돼요"},
	}
	if err := c.UpsertChannelMessages(ctx, msgs); err != nil {
		t.Fatalf("UpsertChannelMessages failed: %v", err)
	}
}

func TestTextsGroupedByTicket(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	q := models.Query{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle}
	recs, err := c.TextsGroupedByTicket(ctx, q)
	if err != nil {
		t.Fatalf("TextsGroupedByTicket failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(recs), recs)
	}

	if recs[0].TicketID != "1" || recs[0].TextValue != "고객: 첫번째\n고객: 두번째" {
		t.Errorf("unexpected ticket block: %+v", recs[0])
	}
	if recs[0].InquiryType != `["환불"]` || recs[0].TextType != models.TextTypeCommentsBlock {
		t.Errorf("unexpected ticket metadata: %+v", recs[0])
	}
	if recs[1].TextValue != "고객: 쿠폰 문의" {
		t.Errorf("ticket without comments should fall back to description, got %q", recs[1].TextValue)
	}

	chat := recs[2]
	if chat.InquiryType != "쿠폰" || chat.TicketName != "강남병원" || chat.TextType != models.TextTypeMessagesBlock {
		t.Errorf("unexpected chat record: %+v", chat)
	}
	want := "(12:00:00) 고객: 쿠폰이 안돼요\n(12:01:00) 매니저: 확인할게요"
	if chat.TextValue != want {
		t.Errorf("chat text = %q, want %q", chat.TextValue, want)
	}
}

func TestTextsGroupedByTicket_Filters(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	q := models.Query{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle, Status: "closed", Source: models.SourceZendesk}
	recs, err := c.TextsGroupedByTicket(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].TicketID != "1" {
		t.Errorf("expected only ticket 1, got %+v", recs)
	}

	q = models.Query{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle, Source: models.SourceChannel}
	recs, err = c.TextsGroupedByTicket(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].TicketID != "c1" {
		t.Errorf("expected only chat c1, got %+v", recs)
	}
}

func TestTextsByType(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)

	q := models.Query{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle, Source: models.SourceZendesk}
	recs, err := c.TextsByType(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(recs), recs)
	}
	if recs[0].TextType != models.TextTypeBody || recs[1].TextType != models.TextTypeComment {
		t.Errorf("unexpected text types: %s %s", recs[0].TextType, recs[1].TextType)
	}
}

func TestCountsByType(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)

	q := models.Query{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle}
	counts, err := c.CountsByType(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.TypeCount{
		{InquiryType: "쿠폰", TicketCount: 2},
		{InquiryType: `["환불"]`, TicketCount: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d counts, got %+v", len(want), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %+v, want %+v", i, counts[i], want[i])
		}
	}

	q.FieldTitle = "없는 필드"
	q.Source = models.SourceZendesk
	counts, err = c.CountsByType(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Errorf("expected no counts for unknown field, got %+v", counts)
	}
}

func TestHeatmap(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)

	cells, err := c.Heatmap(context.Background(), "2024-03-01", "2024-03-31", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.HeatmapCell{
		{Weekday: 1, Hour: 10, Count: 1},
		{Weekday: 1, Hour: 11, Count: 1},
		{Weekday: 2, Hour: 12, Count: 1},
	}
	if len(cells) != len(want) {
		t.Fatalf("expected %d cells, got %+v", len(want), cells)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cells[%d] = %+v, want %+v", i, cells[i], want[i])
		}
	}

	cells, err = c.Heatmap(context.Background(), "2024-03-01", "2024-03-31", []string{models.SourceChannel})
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 1 {
		t.Errorf("expected 1 chat cell, got %+v", cells)
	}
}

func TestStopwordsAndLabelMappings(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.AddStopword(ctx, "ko", "문의"); err != nil {
			t.Fatal(err)
		}
	}
	tokens, err := c.StopwordTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0] != "문의" {
		t.Errorf("unexpected stopwords %v", tokens)
	}

	m := &models.LabelMapping{Source: "zendesk", Label: "refund", Category: "환불"}
	if err := c.UpsertLabelMapping(ctx, m); err != nil {
		t.Fatal(err)
	}
	m2 := &models.LabelMapping{Source: "zendesk", Label: "refund", Category: "결제", Confidence: 0.5}
	if err := c.UpsertLabelMapping(ctx, m2); err != nil {
		t.Fatal(err)
	}
	mappings, err := c.ListLabelMappings(ctx, "zendesk")
	if err != nil {
		t.Fatal(err)
	}
	if len(mappings) != 1 || mappings[0].Category != "결제" || mappings[0].Confidence != 0.5 {
		t.Errorf("unexpected mappings %+v", mappings)
	}
	if other, _ := c.ListLabelMappings(ctx, "channel"); len(other) != 0 {
		t.Errorf("expected no channel mappings, got %+v", other)
	}
}

func TestCheckpointsAndAnalyses(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, ok, err := c.GetCheckpoint(ctx, "zendesk", "timestamp"); err != nil || ok {
		t.Fatalf("expected no checkpoint, ok=%v err=%v", ok, err)
	}
	cp := models.Checkpoint{Source: "zendesk", Type: "timestamp", Value: "2024-03-04T00:00:00Z"}
	if err := c.SetCheckpoint(ctx, cp); err != nil {
		t.Fatal(err)
	}
	cp.Value = "2024-03-05T00:00:00Z"
	if err := c.SetCheckpoint(ctx, cp); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.GetCheckpoint(ctx, "zendesk", "timestamp")
	if err != nil || !ok || v != cp.Value {
		t.Errorf("GetCheckpoint = %q, %v, %v", v, ok, err)
	}

	rec := &models.AnalysisRecord{
		ID: "a1", InquiryType: "환불", From: "2024-03-01", To: "2024-03-31",
		RecordCount: 3, Summary: "요약", UsedLLM: true, CreatedAt: time.Now(),
	}
	if err := c.InsertAnalysis(ctx, rec); err != nil {
		t.Fatal(err)
	}
	list, err := c.ListAnalyses(ctx, "환불", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "a1" || !list[0].UsedLLM {
		t.Errorf("unexpected analyses %+v", list)
	}
}

func TestCategories(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, cat := range []models.Category{
		{CategoryID: "payment", Name: "결제", SortOrder: 2},
		{CategoryID: "refund", Name: "환불", ParentID: "payment", SortOrder: 1},
	} {
		cat := cat
		if err := c.AddCategory(ctx, &cat); err != nil {
			t.Fatalf("AddCategory(%s): %v", cat.CategoryID, err)
		}
	}
	if err := c.AddCategory(ctx, &models.Category{CategoryID: "payment", Name: "dup"}); !errors.Is(err, ErrCategoryExists) {
		t.Errorf("duplicate id: err = %v, want ErrCategoryExists", err)
	}

	cats, err := c.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0].CategoryID != "refund" || cats[0].ParentID != "payment" || cats[1].ParentID != "" {
		t.Errorf("unexpected categories %+v", cats)
	}
}

func seedMappings(t *testing.T, c *Client) {
	t.Helper()
	for _, src := range []string{models.SourceZendesk, models.SourceChannel} {
		m := &models.LabelMapping{Source: src, Label: "쿠폰", Category: "payment"}
		if err := c.UpsertLabelMapping(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}
}

func TestInteractions(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	seedMappings(t, c)
	ctx := context.Background()
	march := models.InteractionQuery{From: "2024-03-01", To: "2024-03-31", FieldTitle: fieldTitle}

	items, total, err := c.Interactions(ctx, march)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("total %d, items %+v", total, items)
	}
	if items[0].ID != "c1" || items[1].ID != "2" || items[2].ID != "1" {
		t.Errorf("expected newest first, got %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[0].CategoryID != "payment" || items[0].Label != "쿠폰" || items[0].Body != "쿠폰이 안돼요\n확인할게요" && items[0].Body != "확인할게요\n쿠폰이 안돼요" {
		t.Errorf("unexpected chat interaction %+v", items[0])
	}
	if items[2].Label != "환불" || items[2].CategoryID != models.Uncategorized || items[2].Tags == nil {
		t.Errorf("unexpected ticket interaction %+v", items[2])
	}

	tests := []struct {
		name    string
		mutate  func(*models.InteractionQuery)
		wantIDs []string
		total   int
	}{
		{"second page", func(q *models.InteractionQuery) { q.Page, q.PageSize = 2, 2 }, []string{"1"}, 3},
		{"past last page", func(q *models.InteractionQuery) { q.Page, q.PageSize = 5, 2 }, []string{}, 3},
		{"source", func(q *models.InteractionQuery) { q.Sources = []string{models.SourceChannel} }, []string{"c1"}, 1},
		{"category", func(q *models.InteractionQuery) { q.CategoryIDs = []string{"payment"} }, []string{"c1", "2"}, 2},
		{"search body", func(q *models.InteractionQuery) { q.Search = "안돼요" }, []string{"c1"}, 1},
		{"search wildcard is literal", func(q *models.InteractionQuery) { q.Search = "%" }, []string{}, 0},
		{"exclude tag", func(q *models.InteractionQuery) { q.Exclude = []string{"쿠폰"} }, []string{"2", "1"}, 2},
		{"date range", func(q *models.InteractionQuery) { q.From, q.To = "2024-02-01", "2024-02-01" }, []string{"3"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := march
			tt.mutate(&q)
			items, total, err := c.Interactions(ctx, q)
			if err != nil {
				t.Fatal(err)
			}
			if total != tt.total || len(items) != len(tt.wantIDs) {
				t.Fatalf("total %d, items %+v", total, items)
			}
			for i, id := range tt.wantIDs {
				if items[i].ID != id {
					t.Errorf("items[%d] = %s, want %s", i, items[i].ID, id)
				}
			}
		})
	}
}

func TestCategoryCountsAndOverview(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	seedMappings(t, c)
	ctx := context.Background()
	q := models.InteractionQuery{From: "2024-03-01", To: "2024-03-05", FieldTitle: fieldTitle}

	counts, err := c.CategoryCounts(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.CategoryCount{{CategoryID: "payment", Count: 2}, {CategoryID: models.Uncategorized, Count: 1}}
	if len(counts) != len(want) || counts[0] != want[0] || counts[1] != want[1] {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}

	ov, err := c.Overview(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	totals := []models.DailyCount{{Date: "2024-03-04", Count: 2}, {Date: "2024-03-05", Count: 1}}
	if len(ov.Totals) != 2 || ov.Totals[0] != totals[0] || ov.Totals[1] != totals[1] {
		t.Errorf("totals = %+v, want %+v", ov.Totals, totals)
	}
	if len(ov.ByCategory) != 1 || ov.ByCategory[0] != (models.CategoryCount{CategoryID: "payment", Count: 1}) {
		t.Errorf("by category = %+v", ov.ByCategory)
	}
}
