package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

// ErrPaperHasNoQuestions indicates a publish was attempted on an empty paper.
var ErrPaperHasNoQuestions = errors.New("paper has no questions")

// PaperService manages exam papers and their lifecycle.
type PaperService interface {
	List(ctx context.Context, filter dto.PaperFilter) ([]dto.PaperResponse, error)
	Get(ctx context.Context, id uint) (dto.PaperResponse, error)
	Create(ctx context.Context, payload dto.PaperCreateRequest, actor ActivityActor) (dto.PaperResponse, error)
	Update(ctx context.Context, id uint, payload dto.PaperUpdateRequest, actor ActivityActor) (dto.PaperResponse, error)
}

type paperService struct {
	repo      repository.PaperRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewPaperService constructs the paper service.
func NewPaperService(repo repository.PaperRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) PaperService {
	return &paperService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "paper_service").Logger(),
	}
}

func (s *paperService) List(ctx context.Context, filter dto.PaperFilter) ([]dto.PaperResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	papers, err := s.repo.List(ctx, repository.PaperFilter{
		Subject: filter.Subject,
		Status:  filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPaperResponseSlice(papers), nil
}

func (s *paperService) Get(ctx context.Context, id uint) (dto.PaperResponse, error) {
	paper, err := s.repo.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaperResponse{}, ErrPaperNotFound
		}
		return dto.PaperResponse{}, err
	}

	return dto.NewPaperResponse(paper), nil
}

func (s *paperService) Create(ctx context.Context, payload dto.PaperCreateRequest, actor ActivityActor) (dto.PaperResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PaperResponse{}, err
	}

	paper := models.Paper{
		Title:   strings.TrimSpace(payload.Title),
		Subject: strings.TrimSpace(payload.Subject),
		Status:  models.PaperStatusDraft,
	}
	if payload.Duration > 0 {
		paper.Duration = payload.Duration
	} else {
		paper.Duration = 60
	}

	if err := s.repo.Create(ctx, &paper); err != nil {
		s.logger.Error().Err(err).Msg("failed to create paper")
		return dto.PaperResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "paper.created",
			EntityType: "paper",
			EntityID:   &paper.ID,
			Metadata:   map[string]interface{}{"title": paper.Title},
		})
	}

	return dto.NewPaperResponse(paper), nil
}

func (s *paperService) Update(ctx context.Context, id uint, payload dto.PaperUpdateRequest, actor ActivityActor) (dto.PaperResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PaperResponse{}, err
	}

	paper, err := s.repo.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaperResponse{}, ErrPaperNotFound
		}
		return dto.PaperResponse{}, err
	}

	changedFields := make([]string, 0)
	if payload.Title != nil {
		paper.Title = strings.TrimSpace(*payload.Title)
		changedFields = append(changedFields, "title")
	}
	if payload.Subject != nil {
		paper.Subject = strings.TrimSpace(*payload.Subject)
		changedFields = append(changedFields, "subject")
	}
	if payload.Duration != nil {
		paper.Duration = *payload.Duration
		changedFields = append(changedFields, "duration")
	}
	if payload.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*payload.Status))
		if status == models.PaperStatusPublished && len(paper.Questions) == 0 {
			return dto.PaperResponse{}, ErrPaperHasNoQuestions
		}
		paper.Status = status
		changedFields = append(changedFields, "status")
	}

	if len(changedFields) == 0 {
		return dto.NewPaperResponse(paper), nil
	}

	if err := s.repo.Update(ctx, &paper); err != nil {
		return dto.PaperResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "paper.updated",
			EntityType: "paper",
			EntityID:   &paper.ID,
			Metadata:   map[string]interface{}{"fields": changedFields},
		})
	}

	return dto.NewPaperResponse(paper), nil
}
