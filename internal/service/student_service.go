package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

// ErrStudentNotFound indicates the student was not located.
var ErrStudentNotFound = errors.New("student not found")

// StudentService manages students and aggregates their exam statistics.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	Stats(ctx context.Context, id uint) (dto.StudentStatsResponse, error)
}

type studentService struct {
	students    repository.StudentRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewStudentService builds the student service. The cache client is
// optional; without it every stats call hits the database.
func NewStudentService(students repository.StudentRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentService {
	return &studentService{
		students:    students,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	students, total, err := s.students.List(ctx, repository.StudentFilter{
		Search: strings.TrimSpace(req.Search),
		Class:  strings.TrimSpace(req.Class),
		Status: strings.TrimSpace(req.Status),
		Page:   req.Page,
		Limit:  req.PageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.StudentListResponse{
		Items:      dto.NewStudentResponseSlice(students),
		Pagination: pagination,
	}, nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

// Stats aggregates a student's exam history. The three aggregates are
// independent queries, so they fan out concurrently.
func (s *studentService) Stats(ctx context.Context, id uint) (dto.StudentStatsResponse, error) {
	if _, err := s.students.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentStatsResponse{}, ErrStudentNotFound
		}
		return dto.StudentStatsResponse{}, err
	}

	cacheKey := fmt.Sprintf("stats:student:%d", id)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", id).Msg("stats cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
	}

	response := dto.StudentStatsResponse{StudentID: id}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		taken, err := s.submissions.CountByStudent(groupCtx, id, "")
		response.PapersTaken = taken
		return err
	})
	group.Go(func() error {
		pending, err := s.submissions.CountByStudent(groupCtx, id, models.SubmissionStatusPendingReview)
		response.PendingReview = pending
		return err
	})
	group.Go(func() error {
		average, err := s.submissions.AverageScoreByStudent(groupCtx, id)
		response.AverageScore = average
		return err
	})
	if err := group.Wait(); err != nil {
		return dto.StudentStatsResponse{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
			}
		}
	}

	return response, nil
}
