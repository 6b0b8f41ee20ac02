package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/service"
	"github.com/mingke-lab/exam-go-api/internal/utils"
)

const progressWriteTimeout = 5 * time.Second

// AdminBatchHandler wires bulk administration endpoints including the
// websocket progress feed.
type AdminBatchHandler struct {
	service service.AdminBatchService
	logger  zerolog.Logger
}

// NewAdminBatchHandler creates the bulk operations handler.
func NewAdminBatchHandler(service service.AdminBatchService, logger zerolog.Logger) *AdminBatchHandler {
	return &AdminBatchHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_batch_handler").Logger(),
	}
}

// Register binds bulk routes under the provided router group.
func (h *AdminBatchHandler) Register(router fiber.Router) {
	router.Post("/students/delete", h.deleteStudents)
	router.Post("/questions/import", h.importQuestions)

	router.Use("/progress/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/progress/ws", websocket.New(h.handleProgress))
}

func (h *AdminBatchHandler) deleteStudents(c *fiber.Ctx) error {
	var payload dto.BatchDeleteStudentsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	outcome, err := h.service.DeleteStudents(c.Context(), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Int("batch_size", len(payload.IDs)).Msg("failed to delete students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete students")
	}

	return utils.SendSuccess(c, "students deleted", outcome)
}

func (h *AdminBatchHandler) importQuestions(c *fiber.Ctx) error {
	var payload dto.BatchImportQuestionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	outcome, err := h.service.ImportQuestions(c.Context(), payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportSchemaInvalid):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Int("batch_size", len(payload.Rows)).Msg("failed to import questions")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to import questions")
		}
	}

	return utils.SendSuccess(c, "questions imported", outcome)
}

func (h *AdminBatchHandler) handleProgress(conn *websocket.Conn) {
	events, cancel := h.service.WatchProgress()
	defer cancel()

	h.logger.Info().Msg("batch progress websocket connected")
	defer h.logger.Info().Msg("batch progress websocket disconnected")

	// Drain and discard client frames so close handshakes are noticed.
	// The reader must be joined before this handler returns, since the
	// connection is pooled and reused once the handler exits.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-closed
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
