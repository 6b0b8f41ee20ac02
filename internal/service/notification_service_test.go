package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/models"
)

type fakeNotificationRepo struct {
	stored []models.Notification
}

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	notification.ID = uint(len(f.stored) + 1)
	f.stored = append(f.stored, *notification)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	var matched []models.Notification
	for _, notification := range f.stored {
		if notification.UserID == userID {
			matched = append(matched, notification)
		}
	}
	return matched, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id uint, userID string) (models.Notification, error) {
	for i := range f.stored {
		if f.stored[i].ID == id && f.stored[i].UserID == userID {
			f.stored[i].Read = true
			return f.stored[i], nil
		}
	}
	return models.Notification{}, gorm.ErrRecordNotFound
}

func TestNotificationServicePublishSanitizesAndBroadcasts(t *testing.T) {
	repo := &fakeNotificationRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewNotificationService(repo, nil, "", nil, validate, testLogger())

	events, cancel := svc.Subscribe("student-7")
	defer cancel()

	response, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  "student-7",
		Type:    "grade_ready",
		Message: "<script>alert(1)</script>Your paper was graded.",
	})
	require.NoError(t, err)
	require.Equal(t, "Your paper was graded.", response.Message)

	select {
	case event := <-events:
		require.Equal(t, response.ID, event.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the notification")
	}
}

func TestNotificationServicePublishGradeResult(t *testing.T) {
	repo := &fakeNotificationRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewNotificationService(repo, nil, "", nil, validate, testLogger())

	graded, err := svc.PublishGradeResult(context.Background(), dto.SubmissionResponse{
		StudentID: 7,
		Score:     11,
		Status:    models.SubmissionStatusGraded,
		Paper:     dto.PaperLite{Title: "History Midterm"},
	})
	require.NoError(t, err)
	require.Equal(t, "grade_ready", graded.Type)
	require.Equal(t, "student-7", graded.UserID)
	require.Contains(t, graded.Message, "11.0")

	pending, err := svc.PublishGradeResult(context.Background(), dto.SubmissionResponse{
		StudentID: 7,
		Status:    models.SubmissionStatusPendingReview,
		Paper:     dto.PaperLite{Title: "History Midterm"},
	})
	require.NoError(t, err)
	require.Equal(t, "grade_pending_review", pending.Type)
	require.NotContains(t, pending.Message, "0.0")
}

func TestNotificationServiceMarkReadScopedToUser(t *testing.T) {
	repo := &fakeNotificationRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewNotificationService(repo, nil, "", nil, validate, testLogger())

	created, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  "student-7",
		Type:    "grade_ready",
		Message: "Graded.",
	})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), created.ID, "student-8")
	require.Error(t, err)

	marked, err := svc.MarkRead(context.Background(), created.ID, "student-7")
	require.NoError(t, err)
	require.True(t, marked.Read)
}
