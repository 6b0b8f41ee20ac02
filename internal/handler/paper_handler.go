package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/service"
	"github.com/mingke-lab/exam-go-api/internal/utils"
)

// PaperHandler wires exam paper endpoints.
type PaperHandler struct {
	service service.PaperService
	logger  zerolog.Logger
}

// NewPaperHandler constructs the handler.
func NewPaperHandler(service service.PaperService, logger zerolog.Logger) *PaperHandler {
	return &PaperHandler{
		service: service,
		logger:  logger.With().Str("component", "paper_handler").Logger(),
	}
}

// Register attaches paper endpoints to the router group.
func (h *PaperHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/", h.create)
	router.Patch("/:id", h.update)
}

func (h *PaperHandler) list(c *fiber.Ctx) error {
	var filter dto.PaperFilter
	if subject := strings.TrimSpace(c.Query("subject")); subject != "" {
		filter.Subject = &subject
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	papers, err := h.service.List(c.Context(), filter)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to list papers")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list papers")
	}

	return utils.SendSuccess(c, "papers", papers)
}

func (h *PaperHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	paper, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "paper not found")
		}
		h.logger.Error().Err(err).Uint("paper_id", id).Msg("failed to load paper")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load paper")
	}

	return utils.SendSuccess(c, "paper", paper)
}

func (h *PaperHandler) create(c *fiber.Ctx) error {
	var payload dto.PaperCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	paper, err := h.service.Create(c.Context(), payload, activityActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to create paper")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create paper")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "paper created", paper)
}

func (h *PaperHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.PaperUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	paper, err := h.service.Update(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaperNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "paper not found")
		case errors.Is(err, service.ErrPaperHasNoQuestions):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.logger.Error().Err(err).Uint("paper_id", id).Msg("failed to update paper")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update paper")
		}
	}

	return utils.SendSuccess(c, "paper updated", paper)
}
