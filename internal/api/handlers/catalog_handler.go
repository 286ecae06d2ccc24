package handlers

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/storage/sqlite"
	"github.com/nicetoya86/ticket/pkg/logger"
)

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	AddCategory(ctx context.Context, cat *models.Category) error
	Interactions(ctx context.Context, q models.InteractionQuery) ([]models.Interaction, int, error)
	CategoryCounts(ctx context.Context, q models.InteractionQuery) ([]models.CategoryCount, error)
	Overview(ctx context.Context, q models.InteractionQuery) (*models.Overview, error)
}

// CatalogHandler serves categories, the unified interaction list and the
// category statistics built on it.
type CatalogHandler struct {
	store     CatalogStore
	normalize func(models.Query) models.Query
}

func NewCatalogHandler(store CatalogStore, normalize func(models.Query) models.Query) *CatalogHandler {
	if normalize == nil {
		normalize = func(q models.Query) models.Query { return q }
	}
	return &CatalogHandler{store: store, normalize: normalize}
}

var slugSeparator = regexp.MustCompile(`[^a-zA-Z0-9가-힣]+`)

// categorySlug derives a category id from its display name: accents are
// dropped, Hangul syllables kept and every other run becomes one '-'.
func categorySlug(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = slugSeparator.ReplaceAllString(s, "-")
	return strings.ToLower(strings.Trim(s, "-"))
}

// multiQuery collects a list parameter from repeated name[] values and a
// comma-separated name value.
func multiQuery(c *fiber.Ctx, name string) []string {
	var out []string
	for _, v := range c.Context().QueryArgs().PeekMulti(name + "[]") {
		out = append(out, string(v))
	}
	if s := c.Query(name); s != "" {
		out = append(out, strings.Split(s, ",")...)
	}
	return out
}

func (h *CatalogHandler) interactionQuery(c *fiber.Ctx) models.InteractionQuery {
	q := h.normalize(models.Query{From: c.Query("from"), To: c.Query("to")})
	return models.InteractionQuery{
		From:        q.From,
		To:          q.To,
		FieldTitle:  q.FieldTitle,
		Sources:     multiQuery(c, "source"),
		CategoryIDs: multiQuery(c, "categoryId"),
		Search:      strings.TrimSpace(c.Query("q")),
		Exclude:     multiQuery(c, "exclude"),
		Page:        c.QueryInt("page", 1),
		PageSize:    c.QueryInt("pageSize", 50),
	}
}

func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	items, err := h.store.ListCategories(c.Context())
	if err != nil {
		return serverError(c, "Failed to list categories", err)
	}
	return c.JSON(items)
}

// AddCategory creates a category. The id defaults to a slug of the name.
func (h *CatalogHandler) AddCategory(c *fiber.Ctx) error {
	var req struct {
		CategoryID string `json:"categoryId"`
		Name       string `json:"name"`
		ParentID   string `json:"parentId"`
		SortOrder  int    `json:"sortOrder"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	if req.CategoryID == "" {
		req.CategoryID = categorySlug(req.Name)
	}
	if req.CategoryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "categoryId is required when the name has no letters or digits",
		})
	}

	cat := &models.Category{CategoryID: req.CategoryID, Name: req.Name, ParentID: req.ParentID, SortOrder: req.SortOrder}
	if err := h.store.AddCategory(c.Context(), cat); err != nil {
		if errors.Is(err, sqlite.ErrCategoryExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Category already exists",
			})
		}
		return serverError(c, "Failed to add category", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"categoryId": cat.CategoryID})
}

// Interactions pages through tickets and chats, newest first. pageSize is
// capped at 200.
func (h *CatalogHandler) Interactions(c *fiber.Ctx) error {
	items, total, err := h.store.Interactions(c.Context(), h.interactionQuery(c))
	if err != nil {
		return noData(c, "Interactions query failed", err, fiber.Map{"items": []any{}, "total": 0})
	}
	return c.JSON(fiber.Map{"items": items, "total": total})
}

func (h *CatalogHandler) CategoryStats(c *fiber.Ctx) error {
	counts, err := h.store.CategoryCounts(c.Context(), h.interactionQuery(c))
	if err != nil {
		return noData(c, "Category stats query failed", err, []models.CategoryCount{})
	}
	return c.JSON(counts)
}

func (h *CatalogHandler) Overview(c *fiber.Ctx) error {
	ov, err := h.store.Overview(c.Context(), h.interactionQuery(c))
	if err != nil {
		logger.Warn("Overview query failed", zap.Error(err))
		ov = &models.Overview{Totals: []models.DailyCount{}, ByCategory: []models.CategoryCount{}}
	}
	return c.JSON(ov)
}

func (h *CatalogHandler) Register(r fiber.Router) {
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.AddCategory)
	r.Get("/interactions", h.Interactions)
	r.Get("/stats/categories", h.CategoryStats)
	r.Get("/stats/overview", h.Overview)
}
