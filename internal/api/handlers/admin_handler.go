package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/pkg/logger"
)

type AdminStore interface {
	ListStopwords(ctx context.Context, locale string) ([]models.Stopword, error)
	AddStopword(ctx context.Context, locale, token string) error
	ListLabelMappings(ctx context.Context, source string) ([]models.LabelMapping, error)
	UpsertLabelMapping(ctx context.Context, m *models.LabelMapping) error
	ListAnalyses(ctx context.Context, inquiryType string, limit int) ([]models.AnalysisRecord, error)
	Heatmap(ctx context.Context, from, to string, sources []string) ([]models.HeatmapCell, error)
}

// Invalidator drops cached views after an edit changes their inputs.
type Invalidator interface {
	InvalidateCache(ctx context.Context) error
}

// AdminHandler serves stopwords, label mappings, analysis history and the
// activity heatmap.
type AdminHandler struct {
	store       AdminStore
	normalize   func(models.Query) models.Query
	invalidator Invalidator
}

// NewAdminHandler builds the handler. normalize fills default date ranges
// and invalidator may be nil.
func NewAdminHandler(store AdminStore, normalize func(models.Query) models.Query, invalidator Invalidator) *AdminHandler {
	if normalize == nil {
		normalize = func(q models.Query) models.Query { return q }
	}
	return &AdminHandler{store: store, normalize: normalize, invalidator: invalidator}
}

func (h *AdminHandler) invalidate(c *fiber.Ctx) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.InvalidateCache(c.Context()); err != nil {
		logger.Warn("Failed to invalidate cache", zap.Error(err))
	}
}

func (h *AdminHandler) ListStopwords(c *fiber.Ctx) error {
	items, err := h.store.ListStopwords(c.Context(), c.Query("locale"))
	if err != nil {
		return serverError(c, "Failed to list stopwords", err)
	}
	return c.JSON(items)
}

func (h *AdminHandler) AddStopword(c *fiber.Ctx) error {
	var req struct {
		Locale string `json:"locale"`
		Token  string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Locale = strings.TrimSpace(req.Locale)
	req.Token = strings.TrimSpace(req.Token)
	if req.Locale == "" || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "locale, token required",
		})
	}

	if err := h.store.AddStopword(c.Context(), req.Locale, req.Token); err != nil {
		return serverError(c, "Failed to add stopword", err)
	}
	h.invalidate(c)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

func (h *AdminHandler) ListLabelMappings(c *fiber.Ctx) error {
	items, err := h.store.ListLabelMappings(c.Context(), c.Query("source"))
	if err != nil {
		return serverError(c, "Failed to list label mappings", err)
	}
	return c.JSON(items)
}

func (h *AdminHandler) AddLabelMapping(c *fiber.Ctx) error {
	var req struct {
		Source     string   `json:"source"`
		Label      string   `json:"label"`
		Category   string   `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Source == "" || req.Label == "" || req.Category == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "source, label, category are required",
		})
	}

	m := &models.LabelMapping{Source: req.Source, Label: req.Label, Category: req.Category, Confidence: 1.0}
	if req.Confidence != nil {
		m.Confidence = *req.Confidence
	}
	if err := h.store.UpsertLabelMapping(c.Context(), m); err != nil {
		return serverError(c, "Failed to save label mapping", err)
	}
	h.invalidate(c)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

func (h *AdminHandler) ListAnalyses(c *fiber.Ctx) error {
	items, err := h.store.ListAnalyses(c.Context(), c.Query("inquiryType"), c.QueryInt("limit", 20))
	if err != nil {
		return serverError(c, "Failed to list analyses", err)
	}
	return c.JSON(fiber.Map{"items": items})
}

// Heatmap counts interactions by KST weekday and hour. Sources come from
// repeated source[] parameters or a comma-separated source value.
func (h *AdminHandler) Heatmap(c *fiber.Ctx) error {
	q := h.normalize(models.Query{From: c.Query("from"), To: c.Query("to")})

	cells, err := h.store.Heatmap(c.Context(), q.From, q.To, multiQuery(c, "source"))
	if err != nil {
		logger.Warn("Heatmap query failed", zap.Error(err))
		return c.JSON([]models.HeatmapCell{})
	}
	return c.JSON(cells)
}

func (h *AdminHandler) Register(r fiber.Router) {
	r.Get("/stopwords", h.ListStopwords)
	r.Post("/stopwords", h.AddStopword)
	r.Get("/label-mappings", h.ListLabelMappings)
	r.Post("/label-mappings", h.AddLabelMapping)
	r.Get("/analyses", h.ListAnalyses)
	r.Get("/stats/heatmap", h.Heatmap)
}
