package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/async"
	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/grading"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/observability"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

// ErrPaperNotFound indicates the paper was not located.
var ErrPaperNotFound = errors.New("paper not found")

// ErrPaperNotPublished indicates the paper is not open for submissions.
var ErrPaperNotPublished = errors.New("paper is not published")

// ErrSubmissionNotFound indicates the submission was not located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrReviewNotPending indicates the question is not awaiting manual review.
var ErrReviewNotPending = errors.New("question is not pending review")

// ErrScoreExceedsMax indicates a review score surpasses the question points.
var ErrScoreExceedsMax = errors.New("score exceeds question points")

// GradeService accepts exam submissions, grades them automatically and
// settles short answers through manual review.
type GradeService interface {
	SubmitAndGrade(ctx context.Context, payload dto.SubmitExamRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	ReviewShortAnswer(ctx context.Context, submissionID uint, payload dto.ReviewShortAnswerRequest, actor ActivityActor) (dto.SubmissionResponse, error)
}

type gradeService struct {
	papers        repository.PaperRepository
	submissions   repository.SubmissionRepository
	validator     *validator.Validate
	activity      ActivityRecorder
	notifications NotificationService
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewGradeService constructs the grading service. The activity recorder and
// notification service are optional; a nil value disables that side effect.
func NewGradeService(papers repository.PaperRepository, submissions repository.SubmissionRepository, validate *validator.Validate, activity ActivityRecorder, notifications NotificationService, logger zerolog.Logger) GradeService {
	return &gradeService{
		papers:        papers,
		submissions:   submissions,
		validator:     validate,
		activity:      activity,
		notifications: notifications,
		logger:        logger.With().Str("component", "grade_service").Logger(),
		tracer:        otel.Tracer("github.com/mingke-lab/exam-go-api/internal/service/grade"),
		now:           time.Now,
	}
}

func (s *gradeService) SubmitAndGrade(ctx context.Context, payload dto.SubmitExamRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.submit")
	span.SetAttributes(
		attribute.Int64("grading.paper_id", int64(payload.PaperID)),
		attribute.Int64("grading.student_id", int64(payload.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	paper, err := s.papers.GetWithQuestions(ctx, payload.PaperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "paper_not_found")
			return dto.SubmissionResponse{}, ErrPaperNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "paper_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	if !paper.IsPublished() {
		span.SetStatus(codes.Error, "paper_not_published")
		return dto.SubmissionResponse{}, ErrPaperNotPublished
	}

	questions := gradingQuestions(paper.Questions)
	results, score := grading.GradeSubmission(questions, payload.Answers)

	status := models.SubmissionStatusGraded
	for _, result := range results {
		if result.Status == grading.StatusPending {
			status = models.SubmissionStatusPendingReview
			break
		}
	}

	submission, err := s.buildSubmission(payload, results, score, status)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	// The create is retried: a grading pass is deterministic, so replaying
	// it against a recovered database is safe.
	if _, err := async.Retry(ctx, async.RetryOptions{
		Name:        "submission_create",
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.submissions.Create(ctx, submission)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return dto.SubmissionResponse{}, err
	}

	for i, result := range results {
		kind := string(questions[i].Kind)
		observability.GradedQuestionsTotal().WithLabelValues(kind, string(result.Status)).Inc()
	}
	observability.GradedSubmissionsTotal().WithLabelValues(status).Inc()

	submission.Paper = paper
	response := dto.NewSubmissionResponse(*submission)

	s.recordActivity(ctx, ActivityEntry{
		ActorID:    payload.StudentID,
		ActorRole:  "student",
		Action:     "submission.graded",
		EntityType: "submission",
		EntityID:   &submission.ID,
		Metadata: map[string]interface{}{
			"paper_id": paper.ID,
			"score":    score,
			"status":   status,
		},
	})
	s.notifyGraded(ctx, response)

	span.SetAttributes(
		attribute.Float64("grading.score", score),
		attribute.String("grading.status", status),
		attribute.Int("grading.questions", len(results)),
	)

	return response, nil
}

func (s *gradeService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradeService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		PaperID:   filter.PaperID,
		StudentID: filter.StudentID,
		Status:    filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *gradeService) ReviewShortAnswer(ctx context.Context, submissionID uint, payload dto.ReviewShortAnswerRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.review")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	var results []grading.Result
	if err := json.Unmarshal(submission.Results, &results); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, fmt.Errorf("decode submission results: %w", err)
	}

	question, err := s.reviewedQuestion(ctx, submission.PaperID, payload.QuestionID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if payload.Score > question.Points+1e-9 {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.SubmissionResponse{}, ErrScoreExceedsMax
	}

	reviewed := false
	pendingLeft := false
	total := 0.0
	for i := range results {
		if results[i].QuestionID == payload.QuestionID {
			if results[i].Status != grading.StatusPending {
				span.SetStatus(codes.Error, "review_not_pending")
				return dto.SubmissionResponse{}, ErrReviewNotPending
			}
			results[i].Correct = payload.Correct
			results[i].Score = payload.Score
			results[i].Status = grading.StatusAuto
			reviewed = true
		}
		if results[i].Status == grading.StatusPending {
			pendingLeft = true
		}
		total += results[i].Score
	}
	if !reviewed {
		span.SetStatus(codes.Error, "review_not_pending")
		return dto.SubmissionResponse{}, ErrReviewNotPending
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	submission.Results = datatypes.JSON(encoded)
	submission.Score = total
	if pendingLeft {
		submission.Status = models.SubmissionStatusPendingReview
	} else {
		submission.Status = models.SubmissionStatusGraded
		gradedAt := s.now()
		submission.GradedAt = &gradedAt
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, err
	}

	response := dto.NewSubmissionResponse(submission)

	s.recordActivity(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.reviewed",
		EntityType: "submission",
		EntityID:   &submission.ID,
		Metadata: map[string]interface{}{
			"question_id": payload.QuestionID,
			"score":       payload.Score,
			"correct":     payload.Correct,
		},
	})
	if !pendingLeft {
		observability.GradedSubmissionsTotal().WithLabelValues(submission.Status).Inc()
		s.notifyGraded(ctx, response)
	}

	span.SetAttributes(attribute.String("grading.status", submission.Status))

	return response, nil
}

func (s *gradeService) buildSubmission(payload dto.SubmitExamRequest, results []grading.Result, score float64, status string) (*models.ExamSubmission, error) {
	answers, err := json.Marshal(payload.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}

	submission := &models.ExamSubmission{
		PaperID:   payload.PaperID,
		StudentID: payload.StudentID,
		Answers:   datatypes.JSON(answers),
		Results:   datatypes.JSON(encoded),
		Score:     score,
		Status:    status,
	}
	if status == models.SubmissionStatusGraded {
		gradedAt := s.now()
		submission.GradedAt = &gradedAt
	}

	return submission, nil
}

func (s *gradeService) reviewedQuestion(ctx context.Context, paperID, questionID uint) (grading.Question, error) {
	paper, err := s.papers.GetWithQuestions(ctx, paperID)
	if err != nil {
		return grading.Question{}, err
	}
	for _, question := range gradingQuestions(paper.Questions) {
		if question.ID == questionID {
			return question, nil
		}
	}

	return grading.Question{}, ErrReviewNotPending
}

func (s *gradeService) recordActivity(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record grading activity")
	}
}

func (s *gradeService) notifyGraded(ctx context.Context, submission dto.SubmissionResponse) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.PublishGradeResult(ctx, submission); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish grade notification")
	}
}

// gradingQuestions converts stored questions into the engine's view,
// decoding the canonical answer JSON. A question whose answer cannot be
// decoded grades with an empty canonical answer rather than aborting the
// whole submission.
func gradingQuestions(questions []models.Question) []grading.Question {
	converted := make([]grading.Question, 0, len(questions))
	for _, question := range questions {
		var answer []string
		if len(question.Answer) > 0 {
			_ = json.Unmarshal(question.Answer, &answer)
		}
		converted = append(converted, grading.Question{
			ID:     question.ID,
			Kind:   grading.Kind(question.Kind),
			Answer: answer,
			Points: question.Points,
		})
	}

	return converted
}
