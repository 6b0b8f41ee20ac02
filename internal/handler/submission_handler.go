package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/middleware"
	"github.com/mingke-lab/exam-go-api/internal/service"
	"github.com/mingke-lab/exam-go-api/internal/utils"
)

// SubmissionHandler wires exam submission and grading endpoints.
type SubmissionHandler struct {
	grades      service.GradeService
	suggestions service.ReviewSuggestService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler. The suggestion service may be
// nil when no AI reviewer is configured.
func NewSubmissionHandler(grades service.GradeService, suggestions service.ReviewSuggestService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		grades:      grades,
		suggestions: suggestions,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group. Manual review
// and AI suggestions are grader actions, so those routes demand an admin or
// teacher on top of the group's authentication.
func (h *SubmissionHandler) Register(router fiber.Router) {
	graderOnly := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("/", h.submit)
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Patch("/:id/review", middleware.WithAuth(h.review, graderOnly))
	router.Get("/:id/suggest", middleware.WithAuth(h.suggestPending, graderOnly))
	router.Get("/:id/suggest/:questionID", middleware.WithAuth(h.suggest, graderOnly))
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitExamRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.grades.SubmitAndGrade(c.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaperNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "paper not found")
		case errors.Is(err, service.ErrPaperNotPublished):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("paper_id", payload.PaperID).Msg("failed to grade submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to grade submission")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission graded", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	var err error
	if filter.PaperID, err = parseQueryUint(c, "paper_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if filter.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = &status
	}

	submissions, err := h.grades.List(c.Context(), filter)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.grades.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		h.logger.Error().Err(err).Uint("submission_id", id).Msg("failed to load submission")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission", submission)
}

func (h *SubmissionHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.ReviewShortAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.grades.ReviewShortAnswer(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrReviewNotPending):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrScoreExceedsMax):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to review short answer")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to review short answer")
		}
	}

	return utils.SendSuccess(c, "short answer reviewed", submission)
}

func (h *SubmissionHandler) suggestPending(c *fiber.Ctx) error {
	if h.suggestions == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "ai reviewer is not configured")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	suggestions, err := h.suggestions.SuggestPending(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrReviewerUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to suggest reviews")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to suggest reviews")
		}
	}

	return utils.SendSuccess(c, "review suggestions", suggestions)
}

func (h *SubmissionHandler) suggest(c *fiber.Ctx) error {
	if h.suggestions == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "ai reviewer is not configured")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	questionID, err := parseUintParam(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	suggestion, err := h.suggestions.Suggest(c.Context(), id, questionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case errors.Is(err, service.ErrReviewNotPending):
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrReviewerUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("submission_id", id).Msg("failed to suggest review")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to suggest review")
		}
	}

	return utils.SendSuccess(c, "review suggestion", suggestion)
}
