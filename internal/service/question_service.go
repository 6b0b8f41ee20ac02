package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/async"
	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

const totalPointsDebounce = 500 * time.Millisecond

// ErrQuestionNotFound indicates the question was not located.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionService manages a paper's questions. Point totals on the parent
// paper are refreshed after edits, debounced so rapid authoring sessions do
// not recompute on every keystroke-sized change.
type QuestionService interface {
	ListByPaper(ctx context.Context, paperID uint) ([]dto.QuestionResponse, error)
	Create(ctx context.Context, payload dto.QuestionCreateRequest, actor ActivityActor) (dto.QuestionResponse, error)
	Update(ctx context.Context, id uint, payload dto.QuestionUpdateRequest, actor ActivityActor) (dto.QuestionResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type questionService struct {
	questions repository.QuestionRepository
	papers    repository.PaperRepository
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger

	mu         sync.Mutex
	debouncers map[uint]*async.Debouncer
}

// NewQuestionService constructs the question service.
func NewQuestionService(questions repository.QuestionRepository, papers repository.PaperRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) QuestionService {
	return &questionService{
		questions:  questions,
		papers:     papers,
		validator:  validate,
		activity:   activity,
		sanitizer:  bluemonday.UGCPolicy(),
		logger:     logger.With().Str("component", "question_service").Logger(),
		debouncers: make(map[uint]*async.Debouncer),
	}
}

func (s *questionService) ListByPaper(ctx context.Context, paperID uint) ([]dto.QuestionResponse, error) {
	if _, err := s.papers.GetByID(ctx, paperID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaperNotFound
		}
		return nil, err
	}

	questions, err := s.questions.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	return dto.NewQuestionResponseSlice(questions), nil
}

func (s *questionService) Create(ctx context.Context, payload dto.QuestionCreateRequest, actor ActivityActor) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	if _, err := s.papers.GetByID(ctx, payload.PaperID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrPaperNotFound
		}
		return dto.QuestionResponse{}, err
	}

	prompt := strings.TrimSpace(s.sanitizer.Sanitize(payload.Prompt))
	if prompt == "" {
		return dto.QuestionResponse{}, errors.New("prompt empty after sanitization")
	}

	answer, err := json.Marshal(payload.Answer)
	if err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("encode answer: %w", err)
	}

	question := models.Question{
		PaperID:  payload.PaperID,
		Kind:     payload.Kind,
		Prompt:   prompt,
		Answer:   datatypes.JSON(answer),
		Position: payload.Position,
		ImageURL: payload.ImageURL,
	}
	if payload.Points > 0 {
		question.Points = payload.Points
	} else {
		question.Points = 1
	}
	if len(payload.Options) > 0 {
		options, err := json.Marshal(payload.Options)
		if err != nil {
			return dto.QuestionResponse{}, fmt.Errorf("encode options: %w", err)
		}
		question.Options = datatypes.JSON(options)
	}

	if err := s.questions.Create(ctx, &question); err != nil {
		s.logger.Error().Err(err).Uint("paper_id", payload.PaperID).Msg("failed to create question")
		return dto.QuestionResponse{}, err
	}

	s.scheduleTotalPoints(question.PaperID)
	s.record(ctx, actor, "question.created", question.ID, map[string]interface{}{
		"paper_id": question.PaperID,
		"kind":     question.Kind,
	})

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Update(ctx context.Context, id uint, payload dto.QuestionUpdateRequest, actor ActivityActor) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	changedFields := make([]string, 0)
	if payload.Prompt != nil {
		prompt := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Prompt))
		if prompt == "" {
			return dto.QuestionResponse{}, errors.New("prompt empty after sanitization")
		}
		question.Prompt = prompt
		changedFields = append(changedFields, "prompt")
	}
	if payload.Options != nil {
		options, err := json.Marshal(payload.Options)
		if err != nil {
			return dto.QuestionResponse{}, fmt.Errorf("encode options: %w", err)
		}
		question.Options = datatypes.JSON(options)
		changedFields = append(changedFields, "options")
	}
	if payload.Answer != nil {
		answer, err := json.Marshal(payload.Answer)
		if err != nil {
			return dto.QuestionResponse{}, fmt.Errorf("encode answer: %w", err)
		}
		question.Answer = datatypes.JSON(answer)
		changedFields = append(changedFields, "answer")
	}
	if payload.Points != nil {
		question.Points = *payload.Points
		changedFields = append(changedFields, "points")
	}
	if payload.Position != nil {
		question.Position = *payload.Position
		changedFields = append(changedFields, "position")
	}
	if payload.ImageURL != nil {
		question.ImageURL = *payload.ImageURL
		changedFields = append(changedFields, "image_url")
	}

	if len(changedFields) == 0 {
		return dto.NewQuestionResponse(question), nil
	}

	if err := s.questions.Update(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.scheduleTotalPoints(question.PaperID)
	s.record(ctx, actor, "question.updated", question.ID, map[string]interface{}{
		"paper_id": question.PaperID,
		"fields":   changedFields,
	})

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	question, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if err := s.questions.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	s.scheduleTotalPoints(question.PaperID)
	s.record(ctx, actor, "question.deleted", id, map[string]interface{}{
		"paper_id": question.PaperID,
	})

	return nil
}

// scheduleTotalPoints refreshes the paper's point total once edits settle.
// The refresh runs detached from the request context.
func (s *questionService) scheduleTotalPoints(paperID uint) {
	s.mu.Lock()
	debouncer, ok := s.debouncers[paperID]
	if !ok {
		debouncer = async.NewDebouncer(totalPointsDebounce)
		s.debouncers[paperID] = debouncer
	}
	s.mu.Unlock()

	debouncer.Call(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.papers.UpdateTotalPoints(ctx, paperID); err != nil {
			s.logger.Warn().Err(err).Uint("paper_id", paperID).Msg("failed to refresh paper total points")
		}
	})
}

func (s *questionService) record(ctx context.Context, actor ActivityActor, action string, id uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "question",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
