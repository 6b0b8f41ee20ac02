package dto

import (
	"time"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// StudentListRequest defines filters for listing students.
type StudentListRequest struct {
	Page     int
	PageSize int
	Search   string
	Class    string
	Status   string
}

// StudentResponse serializes student data.
type StudentResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Class     string    `json:"class"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StudentListResponse wraps a paginated student response.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// StudentStatsResponse aggregates a student's exam history.
type StudentStatsResponse struct {
	StudentID     uint    `json:"student_id"`
	PapersTaken   int64   `json:"papers_taken"`
	AverageScore  float64 `json:"average_score"`
	PendingReview int64   `json:"pending_review"`
}

// NewStudentResponse converts a Student model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:        model.ID,
		Name:      model.Name,
		Email:     model.Email,
		Class:     model.Class,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewStudentResponseSlice converts student models into DTOs.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}

	return responses
}
