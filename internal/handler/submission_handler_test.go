package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/handler"
	"github.com/mingke-lab/exam-go-api/internal/service"
)

type mockGradeService struct {
	response dto.SubmissionResponse
	err      error
}

func (m *mockGradeService) SubmitAndGrade(_ context.Context, _ dto.SubmitExamRequest) (dto.SubmissionResponse, error) {
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockGradeService) Get(_ context.Context, _ uint) (dto.SubmissionResponse, error) {
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockGradeService) List(_ context.Context, _ dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.SubmissionResponse{m.response}, nil
}

func (m *mockGradeService) ReviewShortAnswer(_ context.Context, _ uint, _ dto.ReviewShortAnswerRequest, _ service.ActivityActor) (dto.SubmissionResponse, error) {
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func newSubmissionApp(svc service.GradeService) *fiber.App {
	return newSubmissionAppAs(svc, "teacher")
}

// newSubmissionAppAs registers the handler behind a stand-in for the JWT
// middleware that authenticates every request with the given role. An empty
// role leaves requests anonymous.
func newSubmissionAppAs(svc service.GradeService, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/submissions")
	if role != "" {
		group.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			c.Locals("user_role", role)
			return c.Next()
		})
	}
	handler.NewSubmissionHandler(svc, nil, zerolog.New(io.Discard)).Register(group)
	return app
}

func submitRequest(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	payload, err := json.Marshal(dto.SubmitExamRequest{
		PaperID:   1,
		StudentID: 2,
		Answers:   map[uint][]string{1: {"A"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSubmissionHandler_SubmitCreated(t *testing.T) {
	svc := &mockGradeService{response: dto.SubmissionResponse{ID: 9, PaperID: 1, StudentID: 2, Status: "graded"}}
	app := newSubmissionApp(svc)

	resp := submitRequest(t, app)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	defer resp.Body.Close()
	var body struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, uint(9), body.Data.ID)
}

func TestSubmissionHandler_SubmitUnknownPaper(t *testing.T) {
	app := newSubmissionApp(&mockGradeService{err: service.ErrPaperNotFound})

	resp := submitRequest(t, app)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandler_SubmitUnpublishedPaper(t *testing.T) {
	app := newSubmissionApp(&mockGradeService{err: service.ErrPaperNotPublished})

	resp := submitRequest(t, app)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestSubmissionHandler_ReviewScoreExceedsMax(t *testing.T) {
	app := newSubmissionApp(&mockGradeService{err: service.ErrScoreExceedsMax})

	payload, err := json.Marshal(dto.ReviewShortAnswerRequest{QuestionID: 5, Score: 50, Correct: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/submissions/9/review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandler_ReviewRequiresGrader(t *testing.T) {
	payload, err := json.Marshal(dto.ReviewShortAnswerRequest{QuestionID: 5, Score: 4, Correct: true})
	require.NoError(t, err)

	cases := []struct {
		name   string
		role   string
		status int
	}{
		{name: "anonymous", role: "", status: fiber.StatusUnauthorized},
		{name: "student", role: "student", status: fiber.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newSubmissionAppAs(&mockGradeService{}, tc.role)

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/submissions/9/review", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestSubmissionHandler_SuggestWithoutReviewer(t *testing.T) {
	app := newSubmissionApp(&mockGradeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/9/suggest/5", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
