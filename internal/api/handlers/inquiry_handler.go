package handlers

import (
	"bytes"
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/export"
	"github.com/nicetoya86/ticket/internal/inquiry"
	"github.com/nicetoya86/ticket/internal/keywords"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/tags"
	"github.com/nicetoya86/ticket/pkg/logger"
)

type InquiryService interface {
	Normalize(q models.Query) models.Query
	Texts(ctx context.Context, q models.Query, grouped bool) ([]models.InquiryRecord, error)
	Counts(ctx context.Context, q models.Query) ([]models.TypeCount, error)
	Options(ctx context.Context, q models.Query) ([]models.TypeCount, error)
	Phrases(ctx context.Context, q models.Query, inquiryType string, limit int) ([]keywords.PhraseCount, error)
	TopKeywords(ctx context.Context, q models.Query, inquiryType string, limit int) ([]keywords.KeywordCount, error)
	Analyze(ctx context.Context, q models.Query, inquiryType string) (*inquiry.Result, error)
	AnalyzeStream(ctx context.Context, q models.Query, inquiryType string, onChunk func(string)) (*inquiry.Result, error)
}

type InquiryHandler struct {
	service InquiryService
}

func NewInquiryHandler(service InquiryService) *InquiryHandler {
	return &InquiryHandler{service: service}
}

func queryFrom(c *fiber.Ctx) models.Query {
	return models.Query{
		From:       c.Query("from"),
		To:         c.Query("to"),
		FieldTitle: c.Query("fieldTitle"),
		Status:     c.Query("status"),
		Source:     c.Query("source"),
	}
}

// noData answers a read view whose source failed with an empty payload.
func noData(c *fiber.Ctx, msg string, err error, empty any) error {
	logger.Warn(msg, zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(empty)
}

func emptyItems() fiber.Map {
	return fiber.Map{"items": []any{}}
}

func serverError(c *fiber.Ctx, msg string, err error) error {
	logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

// ListInquiries serves grouped transcripts (group=1), per-text records
// (detail=texts) or ticket counts per inquiry type. Status defaults to
// closed.
func (h *InquiryHandler) ListInquiries(c *fiber.Ctx) error {
	q := queryFrom(c)
	if q.Status == "" {
		q.Status = "closed"
	}

	group := c.Query("group")
	switch {
	case group == "1" || group == "true":
		items, err := h.service.Texts(c.Context(), q, true)
		if err != nil {
			return noData(c, "Failed to load inquiry texts", err, emptyItems())
		}
		return c.JSON(fiber.Map{"items": items})
	case c.Query("detail") == "texts":
		items, err := h.service.Texts(c.Context(), q, false)
		if err != nil {
			return noData(c, "Failed to load inquiry texts", err, emptyItems())
		}
		return c.JSON(fiber.Map{"items": items})
	default:
		items, err := h.service.Counts(c.Context(), q)
		if err != nil {
			return noData(c, "Failed to count inquiries", err, emptyItems())
		}
		return c.JSON(fiber.Map{"items": items})
	}
}

func (h *InquiryHandler) Options(c *fiber.Ctx) error {
	items, err := h.service.Options(c.Context(), queryFrom(c))
	if err != nil {
		return noData(c, "Failed to load inquiry options", err, emptyItems())
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *InquiryHandler) Phrases(c *fiber.Ctx) error {
	items, err := h.service.Phrases(c.Context(), queryFrom(c), c.Query("inquiryType"), c.QueryInt("limit", 0))
	if err != nil {
		return noData(c, "Failed to rank phrases", err, []keywords.PhraseCount{})
	}
	return c.JSON(items)
}

func (h *InquiryHandler) TopKeywords(c *fiber.Ctx) error {
	items, err := h.service.TopKeywords(c.Context(), queryFrom(c), c.Query("inquiryType"), c.QueryInt("limit", 0))
	if err != nil {
		return noData(c, "Failed to rank keywords", err, []keywords.KeywordCount{})
	}
	return c.JSON(items)
}

func (h *InquiryHandler) Analyze(c *fiber.Ctx) error {
	inquiryType := c.Query("inquiryType")
	if inquiryType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "inquiryType is required",
		})
	}

	res, err := h.service.Analyze(c.Context(), queryFrom(c), inquiryType)
	if err != nil {
		return serverError(c, "Failed to analyze inquiries", err)
	}
	return c.JSON(res)
}

// Export downloads the grouped transcripts of one inquiry type as a
// workbook. summary=1 adds the analysis sheet.
func (h *InquiryHandler) Export(c *fiber.Ctx) error {
	q := h.service.Normalize(queryFrom(c))
	inquiryType := c.Query("inquiryType")

	records, err := h.service.Texts(c.Context(), q, true)
	if err != nil {
		return serverError(c, "Failed to load inquiry texts", err)
	}
	if target := tags.Normalize(inquiryType); target != "" {
		filtered := records[:0:0]
		for _, r := range records {
			if tags.Normalize(r.InquiryType) == target {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	var summary *export.Summary
	if s := c.Query("summary"); (s == "1" || s == "true") && inquiryType != "" {
		res, err := h.service.Analyze(c.Context(), q, inquiryType)
		if err != nil {
			return serverError(c, "Failed to analyze inquiries", err)
		}
		summary = &export.Summary{Summary: res.Summary, Themes: res.Themes, Actions: res.Actions}
	}

	var buf bytes.Buffer
	if err := export.WriteInquiriesXLSX(&buf, records, summary); err != nil {
		return serverError(c, "Failed to build workbook", err)
	}

	name := export.FileName(q.From, q.To, inquiryType)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename*=UTF-8''"+url.PathEscape(name))
	return c.Send(buf.Bytes())
}

// Register mounts the routes. analyzeLimit guards the routes that may call
// the LLM and may be nil.
func (h *InquiryHandler) Register(r fiber.Router, analyzeLimit fiber.Handler) {
	if analyzeLimit == nil {
		analyzeLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	r.Get("/inquiries", h.ListInquiries)
	r.Get("/inquiries/options", h.Options)
	r.Get("/inquiries/analyze", analyzeLimit, h.Analyze)
	r.Get("/inquiries/export", analyzeLimit, h.Export)
	r.Get("/keywords/phrases", h.Phrases)
	r.Get("/keywords/top", h.TopKeywords)
}
