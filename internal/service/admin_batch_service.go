package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/async"
	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/observability"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

// Bulk import rows are validated against this schema before any row touches
// the database, so one malformed row fails fast instead of mid-import.
const questionImportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["paper_id", "kind", "prompt", "answer"],
    "properties": {
      "paper_id": {"type": "integer", "minimum": 1},
      "kind": {"enum": ["single", "multiple", "true_false", "fill", "short"]},
      "prompt": {"type": "string", "minLength": 1},
      "options": {"type": "array", "items": {"type": "string"}},
      "answer": {"type": "array", "minItems": 1, "items": {"type": "string"}},
      "points": {"type": "number", "minimum": 0},
      "position": {"type": "integer", "minimum": 0}
    }
  }
}`

const (
	defaultBatchItemTimeout = 10 * time.Second
	progressFlushInterval   = 100 * time.Millisecond
	progressBufferSize      = 32
)

// ErrImportSchemaInvalid indicates the import payload failed schema validation.
var ErrImportSchemaInvalid = errors.New("import payload failed schema validation")

// AdminBatchService runs bulk admin operations with bounded concurrency and
// per-item failure isolation. Progress is streamed to websocket watchers.
type AdminBatchService interface {
	DeleteStudents(ctx context.Context, payload dto.BatchDeleteStudentsRequest, actor ActivityActor) (dto.BatchOutcomeResponse, error)
	ImportQuestions(ctx context.Context, payload dto.BatchImportQuestionsRequest, actor ActivityActor) (dto.BatchOutcomeResponse, error)
	WatchProgress() (<-chan dto.BatchProgressEvent, func())
}

type adminBatchService struct {
	students     repository.StudentRepository
	questions    repository.QuestionRepository
	papers       repository.PaperRepository
	validator    *validator.Validate
	activity     ActivityRecorder
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	importSchema *jsonschema.Schema
	concurrency  int
	itemTimeout  time.Duration
	watchers     *progressBroker
}

type progressBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.BatchProgressEvent]struct{}
}

// NewAdminBatchService constructs the bulk operations service. Concurrency
// values below one and non-positive timeouts fall back to the package
// defaults.
func NewAdminBatchService(students repository.StudentRepository, questions repository.QuestionRepository, papers repository.PaperRepository, validate *validator.Validate, activity ActivityRecorder, concurrency int, itemTimeout time.Duration, logger zerolog.Logger) AdminBatchService {
	if concurrency < 1 {
		concurrency = async.DefaultBatchConcurrency
	}
	if itemTimeout <= 0 {
		itemTimeout = defaultBatchItemTimeout
	}

	return &adminBatchService{
		students:     students,
		questions:    questions,
		papers:       papers,
		validator:    validate,
		activity:     activity,
		logger:       logger.With().Str("component", "admin_batch_service").Logger(),
		tracer:       otel.Tracer("github.com/mingke-lab/exam-go-api/internal/service/admin_batch"),
		sanitizer:    bluemonday.UGCPolicy(),
		importSchema: jsonschema.MustCompileString("question_import.json", questionImportSchema),
		concurrency:  concurrency,
		itemTimeout:  itemTimeout,
		watchers: &progressBroker{
			subscribers: make(map[chan dto.BatchProgressEvent]struct{}),
		},
	}
}

func (s *adminBatchService) DeleteStudents(ctx context.Context, payload dto.BatchDeleteStudentsRequest, actor ActivityActor) (dto.BatchOutcomeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "batch.delete_students", trace.WithAttributes(
		attribute.Int("batch.size", len(payload.IDs)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.BatchOutcomeResponse{}, err
	}

	ids := make([]string, 0, len(payload.IDs))
	byID := make(map[string]uint, len(payload.IDs))
	for _, id := range payload.IDs {
		key := strconv.FormatUint(uint64(id), 10)
		ids = append(ids, key)
		byID[key] = id
	}

	result := async.RunBatch(ctx, ids, async.BatchOptions{
		Concurrency: s.concurrency,
		OnProgress:  s.progressFunc("students_delete"),
	}, func(ctx context.Context, id string) error {
		_, err := async.WithTimeout(ctx, s.itemTimeout, "delete student "+id, func(ctx context.Context) (struct{}, error) {
			return async.Retry(ctx, async.RetryOptions{
				Name:        "student_delete",
				MaxAttempts: 2,
				BaseDelay:   100 * time.Millisecond,
			}, func(ctx context.Context) (struct{}, error) {
				err := s.students.SoftDelete(ctx, byID[id])
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return struct{}{}, fmt.Errorf("student %s not found", id)
				}
				return struct{}{}, err
			})
		})
		return err
	})

	s.finishOperation(ctx, span, "students_delete", actor, result, map[string]interface{}{
		"requested": len(payload.IDs),
	})

	return dto.NewBatchOutcomeResponse(result), nil
}

func (s *adminBatchService) ImportQuestions(ctx context.Context, payload dto.BatchImportQuestionsRequest, actor ActivityActor) (dto.BatchOutcomeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "batch.import_questions", trace.WithAttributes(
		attribute.Int("batch.size", len(payload.Rows)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.BatchOutcomeResponse{}, err
	}
	if err := s.validateImportRows(payload.Rows); err != nil {
		span.RecordError(err)
		return dto.BatchOutcomeResponse{}, err
	}

	ids := make([]string, 0, len(payload.Rows))
	byID := make(map[string]dto.QuestionImportRow, len(payload.Rows))
	affectedPapers := make(map[uint]struct{})
	for i, row := range payload.Rows {
		key := "row-" + strconv.Itoa(i+1)
		ids = append(ids, key)
		byID[key] = row
		affectedPapers[row.PaperID] = struct{}{}
	}

	result := async.RunBatch(ctx, ids, async.BatchOptions{
		Concurrency: s.concurrency,
		OnProgress:  s.progressFunc("questions_import"),
	}, func(ctx context.Context, id string) error {
		_, err := async.WithTimeout(ctx, s.itemTimeout, "import "+id, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.importRow(ctx, byID[id])
		})
		return err
	})

	for paperID := range affectedPapers {
		if err := s.papers.UpdateTotalPoints(ctx, paperID); err != nil {
			s.logger.Warn().Err(err).Uint("paper_id", paperID).Msg("failed to refresh paper total points after import")
		}
	}

	s.finishOperation(ctx, span, "questions_import", actor, result, map[string]interface{}{
		"requested": len(payload.Rows),
		"papers":    len(affectedPapers),
	})

	return dto.NewBatchOutcomeResponse(result), nil
}

// WatchProgress subscribes to progress events for running bulk operations.
// The returned cancel function must be called to release the subscription.
func (s *adminBatchService) WatchProgress() (<-chan dto.BatchProgressEvent, func()) {
	channel := make(chan dto.BatchProgressEvent, progressBufferSize)
	s.watchers.subscribe(channel)
	observability.BatchProgressClientsActive().Inc()

	cleanup := func() {
		s.watchers.unsubscribe(channel)
		observability.BatchProgressClientsActive().Dec()
	}

	return channel, cleanup
}

// progressFunc throttles intermediate progress broadcasts so a large batch
// does not flood watchers. Failures and the final event always go through.
func (s *adminBatchService) progressFunc(operation string) func(done, total int, id string, err error) {
	throttle := async.NewThrottler(progressFlushInterval)

	return func(done, total int, id string, err error) {
		event := dto.BatchProgressEvent{
			Operation: operation,
			Done:      done,
			Total:     total,
			ItemID:    id,
		}
		if err != nil {
			event.Error = err.Error()
		}

		if done == total || err != nil {
			s.watchers.broadcast(event)
			return
		}
		throttle.Call(func() {
			s.watchers.broadcast(event)
		})
	}
}

func (s *adminBatchService) importRow(ctx context.Context, row dto.QuestionImportRow) error {
	prompt := strings.TrimSpace(s.sanitizer.Sanitize(row.Prompt))
	if prompt == "" {
		return errors.New("prompt empty after sanitization")
	}

	answer, err := json.Marshal(row.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}

	question := models.Question{
		PaperID:  row.PaperID,
		Kind:     row.Kind,
		Prompt:   prompt,
		Answer:   datatypes.JSON(answer),
		Points:   row.Points,
		Position: row.Position,
	}
	if question.Points <= 0 {
		question.Points = 1
	}
	if len(row.Options) > 0 {
		options, err := json.Marshal(row.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		question.Options = datatypes.JSON(options)
	}

	_, err = async.Retry(ctx, async.RetryOptions{
		Name:        "question_import",
		MaxAttempts: 2,
		BaseDelay:   100 * time.Millisecond,
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.questions.Create(ctx, &question)
	})

	return err
}

func (s *adminBatchService) validateImportRows(rows []dto.QuestionImportRow) error {
	encoded, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode import rows: %w", err)
	}

	var decoded interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("decode import rows: %w", err)
	}

	if err := s.importSchema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrImportSchemaInvalid, err)
	}

	return nil
}

func (s *adminBatchService) finishOperation(ctx context.Context, span trace.Span, operation string, actor ActivityActor, result async.BatchResult, metadata map[string]interface{}) {
	observability.BatchOperationsTotal().WithLabelValues(operation, "succeeded").Add(float64(result.Succeeded))
	observability.BatchOperationsTotal().WithLabelValues(operation, "failed").Add(float64(result.Failed))

	span.SetAttributes(
		attribute.Int("batch.succeeded", result.Succeeded),
		attribute.Int("batch.failed", result.Failed),
	)

	metadata["succeeded"] = result.Succeeded
	metadata["failed"] = result.Failed

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "batch." + operation,
			EntityType: "batch_operation",
			Metadata:   metadata,
		})
	}

	if result.Failed > 0 {
		s.logger.Warn().
			Str("operation", operation).
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Msg(result.Summary(3))
	} else {
		s.logger.Info().
			Str("operation", operation).
			Int("succeeded", result.Succeeded).
			Msg("bulk operation completed")
	}
}

func (b *progressBroker) subscribe(ch chan dto.BatchProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *progressBroker) unsubscribe(ch chan dto.BatchProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *progressBroker) broadcast(event dto.BatchProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
