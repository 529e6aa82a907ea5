package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/Dongkey-Dev/chat-app/domain/chat"
	"github.com/Dongkey-Dev/chat-app/modules/registry"
	"github.com/Dongkey-Dev/chat-app/modules/router"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	userIDLocal         = "user_id"
)

// Handlers serves the REST and WebSocket endpoints.
type Handlers struct {
	router   *router.Router
	registry *registry.Registry
	logger   types.Logger
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(r *router.Router, reg *registry.Registry, logger types.Logger) *Handlers {
	return &Handlers{
		router:   r,
		registry: reg,
		logger:   logger,
	}
}

// Register configures all HTTP routes on app.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/health", h.healthHandler)

	// WebSocket endpoint, user id in the path or as ?user_id=
	app.Get("/ws/:user_id", h.upgrade, websocket.New(h.handleWebSocket))
	app.Get("/ws", h.upgrade, websocket.New(h.handleWebSocket))

	app.Get("/chatrooms", h.listRooms)
	app.Post("/chatrooms", h.createRoom)
	app.Get("/chatrooms/:id/messages", h.getHistory)
}

// healthHandler handles GET /health.
func (h *Handlers) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": h.registry.Count(),
		},
	})
}

// listRooms handles GET /chatrooms.
func (h *Handlers) listRooms(c *fiber.Ctx) error {
	rooms, err := h.router.RankedRooms(c.UserContext())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		return writeError(c, err)
	}
	return c.JSON(rooms)
}

// createRoom handles POST /chatrooms.
func (h *Handlers) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	room, err := h.router.CreateRoom(c.UserContext(), req.Title)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateRoomResponse{
		Message: "chat room created",
		Room:    room.ID,
	})
}

// getHistory handles GET /chatrooms/:id/messages.
func (h *Handlers) getHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	messages, err := h.router.History(c.UserContext(), roomID, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(HistoryResponse{
		RoomID:   roomID,
		Messages: messages,
	})
}

// upgrade rejects non-WebSocket requests and requests without a valid user id.
func (h *Handlers) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID := c.Params("user_id", c.Query("user_id"))
	if err := chat.ValidateUserID(userID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	}
	c.Locals(userIDLocal, userID)
	return c.Next()
}

// handleWebSocket runs one session for the lifetime of the connection.
func (h *Handlers) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(userIDLocal).(string)
	logger := h.logger.With("user_id", userID)
	conn := registry.NewConn(c, logger)
	// the socket must outlive the write pump
	defer func() { <-conn.Stopped() }()

	ctx := context.Background()
	session := h.router.NewSession(userID, conn)
	if err := session.Open(ctx); err != nil {
		logger.Error("Failed to open session", "error", err)
		return
	}
	logger.Info("WebSocket client connected")

	err := session.Serve(ctx, func() ([]byte, error) {
		for {
			messageType, data, err := c.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Info("Client closed connection")
				} else {
					logger.Debug("Read error", "error", err)
				}
				return nil, err
			}
			if messageType == websocket.TextMessage {
				return data, nil
			}
		}
	})
	if err != nil {
		logger.Error("Session ended abnormally", "error", err)
	}
	logger.Info("WebSocket client disconnected")
}

// writeError maps domain errors to HTTP responses.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	case errors.Is(err, chat.ErrRoomTitleEmpty),
		errors.Is(err, chat.ErrRoomTitleTooLong),
		errors.Is(err, chat.ErrRoomTitleInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: "Service temporarily unavailable",
		})
	}
}
