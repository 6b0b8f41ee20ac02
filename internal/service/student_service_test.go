package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

type countingSubmissionRepo struct {
	fakeSubmissionRepo
	countCalls int32
}

func (f *countingSubmissionRepo) CountByStudent(ctx context.Context, studentID uint, status string) (int64, error) {
	atomic.AddInt32(&f.countCalls, 1)
	if status == models.SubmissionStatusPendingReview {
		return 1, nil
	}
	return 4, nil
}

func (f *countingSubmissionRepo) AverageScoreByStudent(ctx context.Context, studentID uint) (float64, error) {
	return 82.5, nil
}

type singleStudentRepo struct {
	student models.Student
}

func (f *singleStudentRepo) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, int64, error) {
	return []models.Student{f.student}, 1, nil
}

func (f *singleStudentRepo) GetByID(ctx context.Context, id uint) (models.Student, error) {
	if f.student.ID != id {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return f.student, nil
}

func (f *singleStudentRepo) Create(ctx context.Context, student *models.Student) error { return nil }

func (f *singleStudentRepo) Update(ctx context.Context, student *models.Student) error { return nil }

func (f *singleStudentRepo) SoftDelete(ctx context.Context, id uint) error { return nil }

func TestStudentServiceStatsAggregatesAndCaches(t *testing.T) {
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})

	students := &singleStudentRepo{student: models.Student{ID: 7, Name: "Alice"}}
	submissions := &countingSubmissionRepo{}
	svc := NewStudentService(students, submissions, cache, time.Minute, testLogger())

	stats, err := svc.Stats(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.PapersTaken)
	require.Equal(t, int64(1), stats.PendingReview)
	require.InDelta(t, 82.5, stats.AverageScore, 1e-9)

	firstCalls := atomic.LoadInt32(&submissions.countCalls)
	require.Equal(t, int32(2), firstCalls)

	// Second read is served from the cache.
	again, err := svc.Stats(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, stats, again)
	require.Equal(t, firstCalls, atomic.LoadInt32(&submissions.countCalls))
}

func TestStudentServiceStatsUnknownStudent(t *testing.T) {
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})

	students := &singleStudentRepo{student: models.Student{ID: 7}}
	svc := NewStudentService(students, &countingSubmissionRepo{}, cache, time.Minute, testLogger())

	_, err := svc.Stats(context.Background(), 99)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceStatsWithoutCache(t *testing.T) {
	students := &singleStudentRepo{student: models.Student{ID: 7}}
	submissions := &countingSubmissionRepo{}
	svc := NewStudentService(students, submissions, nil, time.Minute, testLogger())

	_, err := svc.Stats(context.Background(), 7)
	require.NoError(t, err)
	first := atomic.LoadInt32(&submissions.countCalls)

	_, err = svc.Stats(context.Background(), 7)
	require.NoError(t, err)
	require.Greater(t, atomic.LoadInt32(&submissions.countCalls), first)
}
