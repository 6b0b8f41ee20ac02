package dto

import (
	"time"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// NotificationCreateRequest describes the payload for publishing a notification.
type NotificationCreateRequest struct {
	UserID  string `json:"user_id" validate:"required,min=1,max=64"`
	Type    string `json:"type" validate:"required,min=1,max=64"`
	Message string `json:"message" validate:"required,min=1"`
}

// NotificationResponse serializes notifications for API clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a Notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}

	return responses
}
