package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/inquiry"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/pkg/logger"
)

// analyzeRequest is the client message that starts a streamed analysis.
type analyzeRequest struct {
	Type        string `json:"type"`
	InquiryType string `json:"inquiry_type"`
	From        string `json:"from"`
	To          string `json:"to"`
	Status      string `json:"status"`
	Source      string `json:"source"`
	FieldTitle  string `json:"field_title"`
}

func (r analyzeRequest) query() models.Query {
	return models.Query{
		From:       r.From,
		To:         r.To,
		FieldTitle: r.FieldTitle,
		Status:     r.Status,
		Source:     r.Source,
	}
}

type WebSocketHandler struct {
	service InquiryService
}

func NewWebSocketHandler(service InquiryService) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection answers each "analyze" message with a status frame, the
// summary as it is generated in "chunk" frames and a final "complete" frame
// carrying the result.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var req analyzeRequest
		if err := c.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if req.Type != "analyze" {
			continue
		}
		if req.InquiryType == "" {
			h.sendError(c, "inquiry_type is required")
			continue
		}

		logger.Info("Processing WebSocket analysis", zap.String("inquiry_type", req.InquiryType))
		if err := h.stream(c, req); err != nil {
			logger.Error("Failed to stream analysis", zap.Error(err))
			h.sendError(c, "Failed to analyze inquiries")
		}
	}
}

func (h *WebSocketHandler) stream(c *websocket.Conn, req analyzeRequest) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.send(c, "status", "Collecting customer texts..."); err != nil {
		return err
	}

	var sendErr error
	onChunk := func(chunk string) {
		if sendErr != nil {
			return
		}
		if sendErr = h.send(c, "chunk", chunk); sendErr != nil {
			cancel()
		}
	}

	res, err := h.service.AnalyzeStream(ctx, req.query(), req.InquiryType, onChunk)
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		return err
	}
	return h.sendComplete(c, res)
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, res *inquiry.Result) error {
	return c.WriteJSON(fiber.Map{
		"type":   "complete",
		"result": res,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, msg string) {
	if err := c.WriteJSON(fiber.Map{"type": "error", "error": msg}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}

func (h *WebSocketHandler) Register(app fiber.Router) {
	app.Get("/ws/analyze", h.Upgrade, websocket.New(h.HandleConnection))
}
