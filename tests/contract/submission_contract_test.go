package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/handler"
	"github.com/mingke-lab/exam-go-api/internal/service"
)

type stubGradeService struct {
	response dto.SubmissionResponse
}

func (s stubGradeService) SubmitAndGrade(context.Context, dto.SubmitExamRequest) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubGradeService) Get(context.Context, uint) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubGradeService) List(context.Context, dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	return []dto.SubmissionResponse{s.response}, nil
}

func (s stubGradeService) ReviewShortAnswer(context.Context, uint, dto.ReviewShortAnswerRequest, service.ActivityActor) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func TestSubmissionContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	gradedAt := time.Now().UTC()
	submission := dto.SubmissionResponse{
		ID:        42,
		PaperID:   7,
		StudentID: 3,
		Score:     11.0,
		Status:    "graded",
		Results: []dto.QuestionResultResponse{
			{QuestionID: 1, Correct: true, Score: 2, Status: "auto"},
			{QuestionID: 2, Correct: false, Score: 0, Status: "auto"},
			{QuestionID: 3, Correct: true, Score: 5, Status: "auto"},
		},
		GradedAt:  &gradedAt,
		CreatedAt: gradedAt,
		UpdatedAt: gradedAt,
	}

	serviceStub := stubGradeService{response: submission}
	submissionHandler := handler.NewSubmissionHandler(serviceStub, nil, zerolog.Nop())

	app := fiber.New()
	submissionHandler.Register(app.Group("/api/v1/submissions"))

	payload, err := json.Marshal(dto.SubmitExamRequest{
		PaperID:   7,
		StudentID: 3,
		Answers:   map[uint][]string{1: {"B"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.NoError(t, schema.Validate(decoded))
}
