package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/ingestion"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/internal/vendors/zendesk"
	"github.com/nicetoya86/ticket/pkg/logger"
)

var kst = time.FixedZone("KST", 9*60*60)

type Ingester interface {
	IngestZendesk(ctx context.Context) (*ingestion.Report, error)
	IngestChannel(ctx context.Context, from, to time.Time) (*ingestion.Report, error)
}

type TicketLookup interface {
	Enabled() bool
	Ticket(ctx context.Context, id int64) (*zendesk.Ticket, error)
	TicketComments(ctx context.Context, ticketID int64, limit int) ([]zendesk.Comment, error)
}

type JobsHandler struct {
	ingester Ingester
	tickets  TicketLookup
}

func NewJobsHandler(ingester Ingester, tickets TicketLookup) *JobsHandler {
	return &JobsHandler{ingester: ingester, tickets: tickets}
}

// Ingest runs an ingestion pass for source (zendesk, channel, or both when
// empty). The channel window may be bounded with from/to.
func (h *JobsHandler) Ingest(c *fiber.Ctx) error {
	source := c.Query("source")
	var reports []*ingestion.Report

	if source == "" || source == models.SourceZendesk {
		report, err := h.ingester.IngestZendesk(c.Context())
		switch {
		case source == "" && errors.Is(err, ingestion.ErrNotConfigured):
		case err != nil:
			logger.Error("Ticket ingestion failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		default:
			reports = append(reports, report)
		}
	}

	if source == "" || source == models.SourceChannel {
		from, to, err := windowFrom(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":    false,
				"error": "from and to must be YYYY-MM-DD dates",
			})
		}
		report, err := h.ingester.IngestChannel(c.Context(), from, to)
		switch {
		case source == "" && errors.Is(err, ingestion.ErrNotConfigured):
		case err != nil:
			logger.Error("Chat ingestion failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		default:
			reports = append(reports, report)
		}
	}

	return c.JSON(fiber.Map{"ok": true, "reports": reports})
}

// windowFrom parses optional KST from/to days. to covers its whole day.
func windowFrom(c *fiber.Ctx) (time.Time, time.Time, error) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, kst)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, kst)
		if err != nil {
			return from, to, err
		}
		to = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return from, to, nil
}

// Ticket proxies a single vendor ticket with its comments unless include
// omits them.
func (h *JobsHandler) Ticket(c *fiber.Ctx) error {
	id := int64(c.QueryInt("id", 0))
	if id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id required"})
	}
	if h.tickets == nil || !h.tickets.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "zendesk is not configured"})
	}

	ticket, err := h.tickets.Ticket(c.Context(), id)
	if err != nil {
		return serverError(c, "Failed to fetch ticket", err)
	}

	comments := []zendesk.Comment{}
	if strings.Contains(c.Query("include", "comments"), "comments") {
		list, err := h.tickets.TicketComments(c.Context(), id, zendesk.MaxComments)
		if err != nil {
			logger.Warn("Failed to fetch ticket comments", zap.Int64("ticket_id", id), zap.Error(err))
		} else if list != nil {
			comments = list
		}
	}
	return c.JSON(fiber.Map{"ticket": ticket, "comments": comments})
}

func (h *JobsHandler) Register(r fiber.Router) {
	r.Post("/jobs/ingest", h.Ingest)
	r.Get("/zendesk/ticket", h.Ticket)
}
