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

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/async"
	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/grading"
	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
	"github.com/mingke-lab/exam-go-api/pkg/ai"
)

const (
	reviewSuggestTimeout     = 20 * time.Second
	reviewSuggestConcurrency = 3
)

// ErrReviewerUnavailable indicates no AI reviewer is configured.
var ErrReviewerUnavailable = errors.New("ai reviewer is not configured")

// ReviewSuggestService asks an AI reviewer for an advisory grade on short
// answers that are pending manual review. Suggestions never change a
// submission; a human grader still settles each pending result.
type ReviewSuggestService interface {
	Suggest(ctx context.Context, submissionID, questionID uint) (dto.ReviewSuggestionResponse, error)
	SuggestPending(ctx context.Context, submissionID uint) ([]dto.ReviewSuggestionResponse, error)
}

type reviewSuggestService struct {
	submissions repository.SubmissionRepository
	papers      repository.PaperRepository
	reviewer    ai.Reviewer
	logger      zerolog.Logger
}

// NewReviewSuggestService constructs the suggestion service. A nil reviewer
// makes every call fail with ErrReviewerUnavailable.
func NewReviewSuggestService(submissions repository.SubmissionRepository, papers repository.PaperRepository, reviewer ai.Reviewer, logger zerolog.Logger) ReviewSuggestService {
	return &reviewSuggestService{
		submissions: submissions,
		papers:      papers,
		reviewer:    reviewer,
		logger:      logger.With().Str("component", "review_suggest_service").Logger(),
	}
}

func (s *reviewSuggestService) Suggest(ctx context.Context, submissionID, questionID uint) (dto.ReviewSuggestionResponse, error) {
	if s.reviewer == nil {
		return dto.ReviewSuggestionResponse{}, ErrReviewerUnavailable
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewSuggestionResponse{}, ErrSubmissionNotFound
		}
		return dto.ReviewSuggestionResponse{}, err
	}

	question, err := s.pendingQuestion(ctx, submission, questionID)
	if err != nil {
		return dto.ReviewSuggestionResponse{}, err
	}

	return s.suggestOne(ctx, submission, question, questionID)
}

// SuggestPending produces advisory grades for every short answer still
// awaiting review on the submission. Questions are reviewed concurrently and
// a failed review for one question does not block the others.
func (s *reviewSuggestService) SuggestPending(ctx context.Context, submissionID uint) ([]dto.ReviewSuggestionResponse, error) {
	if s.reviewer == nil {
		return nil, ErrReviewerUnavailable
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	var results []grading.Result
	if err := json.Unmarshal(submission.Results, &results); err != nil {
		return nil, fmt.Errorf("decode submission results: %w", err)
	}

	paper, err := s.papers.GetWithQuestions(ctx, submission.PaperID)
	if err != nil {
		return nil, err
	}
	questionsByID := make(map[uint]models.Question, len(paper.Questions))
	for _, question := range paper.Questions {
		questionsByID[question.ID] = question
	}

	var pendingIDs []string
	pending := make(map[string]uint)
	for _, result := range results {
		if result.Status != grading.StatusPending {
			continue
		}
		if _, ok := questionsByID[result.QuestionID]; !ok {
			continue
		}
		key := strconv.FormatUint(uint64(result.QuestionID), 10)
		pendingIDs = append(pendingIDs, key)
		pending[key] = result.QuestionID
	}
	if len(pendingIDs) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	suggestions := make(map[uint]dto.ReviewSuggestionResponse, len(pendingIDs))

	outcome := async.RunBatch(ctx, pendingIDs, async.BatchOptions{Concurrency: reviewSuggestConcurrency}, func(ctx context.Context, id string) error {
		questionID := pending[id]
		suggestion, err := s.suggestOne(ctx, submission, questionsByID[questionID], questionID)
		if err != nil {
			return err
		}
		mu.Lock()
		suggestions[questionID] = suggestion
		mu.Unlock()
		return nil
	})
	if outcome.Failed > 0 {
		s.logger.Warn().
			Uint("submission_id", submissionID).
			Int("failed", outcome.Failed).
			Str("summary", outcome.Summary(3)).
			Msg("some ai review suggestions failed")
	}

	ordered := make([]dto.ReviewSuggestionResponse, 0, len(suggestions))
	for _, id := range pendingIDs {
		if suggestion, ok := suggestions[pending[id]]; ok {
			ordered = append(ordered, suggestion)
		}
	}
	return ordered, nil
}

func (s *reviewSuggestService) suggestOne(ctx context.Context, submission models.ExamSubmission, question models.Question, questionID uint) (dto.ReviewSuggestionResponse, error) {
	studentAnswer, err := answerFor(submission, questionID)
	if err != nil {
		return dto.ReviewSuggestionResponse{}, err
	}

	var reference []string
	if len(question.Answer) > 0 {
		_ = json.Unmarshal(question.Answer, &reference)
	}

	input := ai.ReviewInput{
		QuestionPrompt:  question.Prompt,
		ReferenceAnswer: strings.Join(reference, "; "),
		StudentAnswer:   studentAnswer,
		MaxPoints:       question.Points,
	}

	result, err := async.WithTimeout(ctx, reviewSuggestTimeout, "ai review suggestion", func(ctx context.Context) (ai.ReviewResult, error) {
		return s.reviewer.Review(ctx, input)
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Uint("question_id", questionID).Msg("ai review suggestion failed")
		return dto.ReviewSuggestionResponse{}, err
	}

	return dto.ReviewSuggestionResponse{
		SubmissionID:   submission.ID,
		QuestionID:     questionID,
		SuggestedScore: result.Score * question.Points,
		MaxPoints:      question.Points,
		Verdict:        result.Verdict,
		Feedback:       result.Feedback,
	}, nil
}

// pendingQuestion returns the short question awaiting review, or
// ErrReviewNotPending when the question is absent, not a short answer, or
// already settled.
func (s *reviewSuggestService) pendingQuestion(ctx context.Context, submission models.ExamSubmission, questionID uint) (models.Question, error) {
	var results []grading.Result
	if err := json.Unmarshal(submission.Results, &results); err != nil {
		return models.Question{}, fmt.Errorf("decode submission results: %w", err)
	}

	pending := false
	for _, result := range results {
		if result.QuestionID == questionID && result.Status == grading.StatusPending {
			pending = true
			break
		}
	}
	if !pending {
		return models.Question{}, ErrReviewNotPending
	}

	paper, err := s.papers.GetWithQuestions(ctx, submission.PaperID)
	if err != nil {
		return models.Question{}, err
	}
	for _, question := range paper.Questions {
		if question.ID == questionID {
			return question, nil
		}
	}

	return models.Question{}, ErrReviewNotPending
}

func answerFor(submission models.ExamSubmission, questionID uint) (string, error) {
	var answers map[uint][]string
	if err := json.Unmarshal(submission.Answers, &answers); err != nil {
		return "", fmt.Errorf("decode submission answers: %w", err)
	}

	return strings.Join(answers[questionID], "\n"), nil
}
