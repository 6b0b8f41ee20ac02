package dto

import (
	"encoding/json"
	"time"

	"github.com/mingke-lab/exam-go-api/internal/grading"
	"github.com/mingke-lab/exam-go-api/internal/models"
)

// SubmitExamRequest carries one student's answers for a paper. Keys of
// Answers are question identifiers; values are the chosen answer strings
// (one for single/true_false/fill, several for multiple).
type SubmitExamRequest struct {
	PaperID   uint                `json:"paper_id" validate:"required,gt=0"`
	StudentID uint                `json:"student_id" validate:"required,gt=0"`
	Answers   map[uint][]string   `json:"answers" validate:"required"`
}

// ReviewShortAnswerRequest records a human grader's verdict on a pending
// short-answer question.
type ReviewShortAnswerRequest struct {
	QuestionID uint    `json:"question_id" validate:"required,gt=0"`
	Score      float64 `json:"score" validate:"gte=0"`
	Correct    bool    `json:"correct"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	PaperID   *uint   `query:"paper_id"`
	StudentID *uint   `query:"student_id"`
	Status    *string `query:"status" validate:"omitempty,oneof=submitted graded pending_review"`
}

// QuestionResultResponse serializes one graded question.
type QuestionResultResponse struct {
	QuestionID uint    `json:"question_id"`
	Correct    bool    `json:"correct"`
	Score      float64 `json:"score"`
	Status     string  `json:"status"`
}

// SubmissionResponse is returned after grading a submission.
type SubmissionResponse struct {
	ID        uint                     `json:"id"`
	PaperID   uint                     `json:"paper_id"`
	StudentID uint                     `json:"student_id"`
	Score     float64                  `json:"score"`
	Status    string                   `json:"status"`
	Results   []QuestionResultResponse `json:"results"`
	GradedAt  *time.Time               `json:"graded_at"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Paper     PaperLite                `json:"paper"`
	Student   StudentLite              `json:"student"`
}

// PaperLite summarizes a paper in submission responses.
type PaperLite struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSubmissionResponse converts an ExamSubmission model into a DTO.
func NewSubmissionResponse(model models.ExamSubmission) SubmissionResponse {
	response := SubmissionResponse{
		ID:        model.ID,
		PaperID:   model.PaperID,
		StudentID: model.StudentID,
		Score:     model.Score,
		Status:    model.Status,
		GradedAt:  model.GradedAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}

	if len(model.Results) > 0 {
		var results []grading.Result
		if err := json.Unmarshal(model.Results, &results); err == nil {
			response.Results = NewQuestionResultResponseSlice(results)
		}
	}

	if model.Paper.ID != 0 {
		response.Paper = PaperLite{
			ID:      model.Paper.ID,
			Title:   model.Paper.Title,
			Subject: model.Paper.Subject,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.ExamSubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// NewQuestionResultResponseSlice converts grading results into DTOs.
func NewQuestionResultResponseSlice(results []grading.Result) []QuestionResultResponse {
	responses := make([]QuestionResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, QuestionResultResponse{
			QuestionID: result.QuestionID,
			Correct:    result.Correct,
			Score:      result.Score,
			Status:     string(result.Status),
		})
	}

	return responses
}
