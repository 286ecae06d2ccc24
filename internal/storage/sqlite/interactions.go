package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/pkg/logger"
)

// ErrCategoryExists is returned when a category id is already taken.
var ErrCategoryExists = errors.New("category already exists")

const (
	defaultPageSize = 50
	maxPageSize     = 200
	overviewTop     = 50
)

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `
		SELECT category_id, name, COALESCE(parent_id, ''), sort_order, created_at
		FROM categories
		ORDER BY sort_order, category_id
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var cat models.Category
		var createdAt int64
		if err := rows.Scan(&cat.CategoryID, &cat.Name, &cat.ParentID, &cat.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (c *Client) AddCategory(ctx context.Context, cat *models.Category) error {
	query := `INSERT INTO categories (category_id, name, parent_id, sort_order, created_at) VALUES (?, ?, ?, ?, ?)`

	var parent sql.NullString
	if cat.ParentID != "" {
		parent = sql.NullString{String: cat.ParentID, Valid: true}
	}
	cat.CreatedAt = time.Now()
	_, err := c.db.ExecContext(ctx, query, cat.CategoryID, cat.Name, parent, cat.SortOrder, cat.CreatedAt.Unix())
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrCategoryExists, cat.CategoryID)
		}
		return fmt.Errorf("failed to add category: %w", err)
	}

	logger.Info("Category added", zap.String("category_id", cat.CategoryID))
	return nil
}

// Interactions returns one page of the unified list, newest first, and the
// number of interactions matching the filter.
func (c *Client) Interactions(ctx context.Context, q models.InteractionQuery) ([]models.Interaction, int, error) {
	rows, err := c.interactions(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	size := q.PageSize
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	total := len(rows)
	start := (page - 1) * size
	if start >= total {
		return []models.Interaction{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}

	out := make([]models.Interaction, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, r.Interaction)
	}
	return out, total, nil
}

// CategoryCounts counts matching interactions per category, largest first.
func (c *Client) CategoryCounts(ctx context.Context, q models.InteractionQuery) ([]models.CategoryCount, error) {
	rows, err := c.interactions(ctx, q)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.CategoryID]++
	}
	return sortCategoryCounts(counts), nil
}

// Overview returns daily totals for the range and the top categories of its
// last day. Category and search filters do not apply.
func (c *Client) Overview(ctx context.Context, q models.InteractionQuery) (*models.Overview, error) {
	q.CategoryIDs, q.Search, q.Exclude = nil, "", nil
	rows, err := c.interactions(ctx, q)
	if err != nil {
		return nil, err
	}

	daily := make(map[string]int)
	last := make(map[string]int)
	for _, r := range rows {
		daily[r.day]++
		if r.day == q.To {
			last[r.CategoryID]++
		}
	}

	ov := &models.Overview{Totals: make([]models.DailyCount, 0, len(daily))}
	for d, n := range daily {
		ov.Totals = append(ov.Totals, models.DailyCount{Date: d, Count: n})
	}
	sort.Slice(ov.Totals, func(i, j int) bool { return ov.Totals[i].Date < ov.Totals[j].Date })

	ov.ByCategory = sortCategoryCounts(last)
	if len(ov.ByCategory) > overviewTop {
		ov.ByCategory = ov.ByCategory[:overviewTop]
	}
	return ov, nil
}

type interactionRow struct {
	models.Interaction
	day string
}

// interactions loads every interaction matching q, newest first, with
// categories resolved through the label mappings.
func (c *Client) interactions(ctx context.Context, q models.InteractionQuery) ([]interactionRow, error) {
	lo, hi := dateBounds(models.Query{From: q.From, To: q.To})
	pattern := likePattern(q.Search)

	query := `
		SELECT id, source, created_at, day, title, body, tags, label FROM (
			SELECT CAST(t.id AS TEXT) AS id, 'zendesk' AS source, t.created_at AS created_at,
			       date(t.created_at, '+9 hours') AS day,
			       COALESCE(t.subject, '') AS title, COALESCE(t.description, '') AS body,
			       COALESCE(t.tags, '') AS tags, COALESCE(f.value, '') AS label
			FROM raw_zendesk_tickets t
			LEFT JOIN ticket_field_values f ON f.ticket_id = t.id AND f.field_title = ?
			UNION ALL
			SELECT cv.id, 'channel', cv.created_at, date(cv.created_at, '+9 hours'),
			       COALESCE(cv.name, ''),
			       COALESCE((SELECT group_concat(m.text, char(10)) FROM raw_channel_messages m
			                 WHERE m.conversation_id = cv.id), ''),
			       COALESCE(cv.tags, ''), ''
			FROM raw_channel_conversations cv
		)
		WHERE day BETWEEN ? AND ?
		  AND (? = '' OR title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')
		ORDER BY created_at DESC, id
	`
	rows, err := c.db.QueryContext(ctx, query, q.FieldTitle, lo, hi, q.Search, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var raw []interactionRow
	for rows.Next() {
		var r interactionRow
		var tagsJSON, label string
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.day, &r.Title, &r.Body, &tagsJSON, &label); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		r.Tags = decodeTags(tagsJSON)
		if r.Source == models.SourceChannel {
			r.Label = tags.Primary(tagsJSON)
		} else {
			r.Label = tags.Normalize(label)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mappings, err := c.ListLabelMappings(ctx, "")
	if err != nil {
		return nil, err
	}
	categoryOf := make(map[string]string, len(mappings))
	for _, m := range mappings {
		categoryOf[m.Source+"\x00"+m.Label] = m.Category
	}

	sources := toSet(q.Sources)
	categories := toSet(q.CategoryIDs)
	exclude := toSet(q.Exclude)

	out := raw[:0]
	for _, r := range raw {
		r.CategoryID = models.Uncategorized
		if cat, ok := categoryOf[r.Source+"\x00"+r.Label]; ok && r.Label != "" {
			r.CategoryID = cat
		}
		if !matches(sources, r.Source) || !matches(categories, r.CategoryID) {
			continue
		}
		if carriesAny(exclude, r.Tags) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeTags(s string) []string {
	var out []string
	if s != "" {
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			out = nil
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// likePattern wraps s for a substring LIKE match with % and _ escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func toSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// matches reports whether v is in set. An empty set matches everything.
func matches(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

func carriesAny(set map[string]struct{}, vals []string) bool {
	for _, v := range vals {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func sortCategoryCounts(counts map[string]int) []models.CategoryCount {
	out := make([]models.CategoryCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.CategoryCount{CategoryID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}
