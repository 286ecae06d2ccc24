package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/storage/sqlite"
)

type fakeCatalogStore struct {
	categories []models.Category
	lastQuery  models.InteractionQuery
	err        error
}

func (f *fakeCatalogStore) ListCategories(context.Context) ([]models.Category, error) {
	return f.categories, f.err
}

func (f *fakeCatalogStore) AddCategory(_ context.Context, cat *models.Category) error {
	for _, c := range f.categories {
		if c.CategoryID == cat.CategoryID {
			return fmt.Errorf("%w: %s", sqlite.ErrCategoryExists, cat.CategoryID)
		}
	}
	f.categories = append(f.categories, *cat)
	return nil
}

func (f *fakeCatalogStore) Interactions(_ context.Context, q models.InteractionQuery) ([]models.Interaction, int, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, 0, f.err
	}
	return []models.Interaction{{ID: "c1", Source: models.SourceChannel}}, 7, nil
}

func (f *fakeCatalogStore) CategoryCounts(_ context.Context, q models.InteractionQuery) ([]models.CategoryCount, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return []models.CategoryCount{{CategoryID: "payment", Count: 2}}, nil
}

func (f *fakeCatalogStore) Overview(_ context.Context, q models.InteractionQuery) (*models.Overview, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &models.Overview{
		Totals:     []models.DailyCount{{Date: q.To, Count: 3}},
		ByCategory: []models.CategoryCount{{CategoryID: "payment", Count: 3}},
	}, nil
}

func newCatalogApp(store *fakeCatalogStore) *fiber.App {
	app := fiber.New()
	NewCatalogHandler(store, (&fakeService{}).Normalize).Register(app.Group("/api/v1"))
	return app
}

func TestCategorySlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Payment Issues", "payment-issues"},
		{"결제 / 환불", "결제-환불"},
		{"Café Crème", "cafe-creme"},
		{"  !!  ", ""},
	}
	for _, tt := range tests {
		if got := categorySlug(tt.name); got != tt.want {
			t.Errorf("categorySlug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCategoryRoutes(t *testing.T) {
	store := &fakeCatalogStore{}
	app := newCatalogApp(store)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing name", `{"sortOrder":1}`, 400},
		{"slug from name", `{"name":"Payment Issues","sortOrder":2}`, 201},
		{"explicit id", `{"name":"환불","categoryId":"refund","parentId":"payment-issues"}`, 201},
		{"duplicate", `{"name":"payment issues"}`, 409},
		{"no letters", `{"name":"!!"}`, 400},
		{"bad body", `{`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := doJSON(t, app, "POST", "/api/v1/categories", tt.body, nil); code != tt.want {
				t.Errorf("status %d, want %d", code, tt.want)
			}
		})
	}

	var cats []models.Category
	if code := doJSON(t, app, "GET", "/api/v1/categories", "", &cats); code != 200 {
		t.Fatalf("list status %d", code)
	}
	if len(cats) != 2 || cats[0].CategoryID != "payment-issues" || cats[1].ParentID != "payment-issues" {
		t.Errorf("unexpected categories %+v", cats)
	}
}

func TestInteractionsRoute(t *testing.T) {
	store := &fakeCatalogStore{}
	app := newCatalogApp(store)

	var page struct {
		Items []models.Interaction `json:"items"`
		Total int                  `json:"total"`
	}
	target := "/api/v1/interactions?source[]=zendesk&source[]=channel&categoryId=payment,refund&exclude[]=test&q=coupon&page=2&pageSize=10"
	if code := doJSON(t, app, "GET", target, "", &page); code != 200 {
		t.Fatalf("status %d", code)
	}
	if page.Total != 7 || len(page.Items) != 1 {
		t.Errorf("unexpected page %+v", page)
	}

	q := store.lastQuery
	if q.From != "2024-03-01" || q.To != "2024-03-31" {
		t.Errorf("dates not defaulted: %+v", q)
	}
	if len(q.Sources) != 2 || len(q.CategoryIDs) != 2 || len(q.Exclude) != 1 {
		t.Errorf("list params = %+v", q)
	}
	if q.Search != "coupon" || q.Page != 2 || q.PageSize != 10 {
		t.Errorf("paging params = %+v", q)
	}
}

func TestStatsRoutes(t *testing.T) {
	store := &fakeCatalogStore{}
	app := newCatalogApp(store)

	var counts []models.CategoryCount
	if code := doJSON(t, app, "GET", "/api/v1/stats/categories?source=channel", "", &counts); code != 200 {
		t.Fatalf("status %d", code)
	}
	if len(counts) != 1 || len(store.lastQuery.Sources) != 1 {
		t.Errorf("counts %+v, query %+v", counts, store.lastQuery)
	}

	var ov models.Overview
	if code := doJSON(t, app, "GET", "/api/v1/stats/overview?to=2024-03-05", "", &ov); code != 200 {
		t.Fatalf("status %d", code)
	}
	if len(ov.Totals) != 1 || ov.Totals[0].Date != "2024-03-05" || len(ov.ByCategory) != 1 {
		t.Errorf("unexpected overview %+v", ov)
	}
}

func TestCatalogReadViews_NoDataOnFailure(t *testing.T) {
	app := newCatalogApp(&fakeCatalogStore{err: errors.New("db down")})

	tests := []struct {
		target string
		want   string
	}{
		{"/api/v1/interactions", `{"items":[],"total":0}`},
		{"/api/v1/stats/categories", `[]`},
		{"/api/v1/stats/overview", `{"totals":[],"by_category":[]}`},
	}
	for _, tt := range tests {
		code, body := bodyOf(t, app, tt.target)
		if code != 200 || body != tt.want {
			t.Errorf("GET %s = %d %s, want 200 %s", tt.target, code, body, tt.want)
		}
	}

	if code := doJSON(t, app, "GET", "/api/v1/categories", "", nil); code != 500 {
		t.Errorf("category list failure = %d, want 500", code)
	}
}
