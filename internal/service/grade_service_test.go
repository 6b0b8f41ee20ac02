package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/mingke-lab/exam-go-api/internal/dto"
	"github.com/mingke-lab/exam-go-api/internal/grading"
	"github.com/mingke-lab/exam-go-api/internal/models"
)

func publishedPaper() models.Paper {
	return models.Paper{
		ID:     1,
		Title:  "History Midterm",
		Status: models.PaperStatusPublished,
		Questions: []models.Question{
			questionFixture(1, "single", []string{"B"}, 2),
			questionFixture(2, "multiple", []string{"A", "C"}, 4),
			questionFixture(3, "true_false", []string{"对"}, 2),
			questionFixture(4, "fill", []string{"北京;上海"}, 3),
			questionFixture(5, "short", []string{"长城保护"}, 5),
		},
	}
}

func TestGradeServiceSubmitAndGrade(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	submissions := &fakeSubmissionRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	response, err := svc.SubmitAndGrade(context.Background(), dto.SubmitExamRequest{
		PaperID:   1,
		StudentID: 7,
		Answers: map[uint][]string{
			1: {"B"},
			2: {"C", "A"},
			3: {"对"},
			4: {"北京 ;上海"},
			5: {"要加强长城保护"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, models.SubmissionStatusPendingReview, response.Status)
	require.InDelta(t, 11.0, response.Score, 1e-9, "short answer scores zero until reviewed")
	require.Len(t, response.Results, 5)

	byQuestion := map[uint]dto.QuestionResultResponse{}
	for _, result := range response.Results {
		byQuestion[result.QuestionID] = result
	}
	require.True(t, byQuestion[1].Correct)
	require.True(t, byQuestion[2].Correct, "multiple choice is order independent")
	require.True(t, byQuestion[3].Correct)
	require.True(t, byQuestion[4].Correct, "fill normalizes whitespace per blank")
	require.Equal(t, string(grading.StatusPending), byQuestion[5].Status)
	require.Nil(t, response.GradedAt)
}

func TestGradeServiceTrueFalseRequiresExactAnswer(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	submissions := &fakeSubmissionRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	// Synonyms are a short-answer concession; true/false takes only the
	// canonical token.
	response, err := svc.SubmitAndGrade(context.Background(), dto.SubmitExamRequest{
		PaperID:   1,
		StudentID: 7,
		Answers: map[uint][]string{
			1: {"B"},
			2: {"C", "A"},
			3: {"正确"},
			4: {"北京 ;上海"},
			5: {"要加强长城保护"},
		},
	})
	require.NoError(t, err)

	require.InDelta(t, 9.0, response.Score, 1e-9)
	for _, result := range response.Results {
		if result.QuestionID == 3 {
			require.False(t, result.Correct)
			require.Zero(t, result.Score)
		}
	}
}

func TestGradeServiceRetriesTransientCreate(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	submissions := &fakeSubmissionRepo{createErrs: 2}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	_, err := svc.SubmitAndGrade(context.Background(), dto.SubmitExamRequest{
		PaperID:   1,
		StudentID: 7,
		Answers:   map[uint][]string{1: {"B"}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, submissions.createCalls)
}

func TestGradeServiceRejectsUnpublishedPaper(t *testing.T) {
	paper := publishedPaper()
	paper.Status = models.PaperStatusDraft
	papers := &fakePaperRepo{paper: paper}
	submissions := &fakeSubmissionRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	_, err := svc.SubmitAndGrade(context.Background(), dto.SubmitExamRequest{
		PaperID:   1,
		StudentID: 7,
		Answers:   map[uint][]string{1: {"B"}},
	})
	require.ErrorIs(t, err, ErrPaperNotPublished)
	require.Equal(t, 0, submissions.createCalls)
}

func TestGradeServicePaperNotFound(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, &fakeSubmissionRepo{}, validate, nil, nil, testLogger())

	_, err := svc.SubmitAndGrade(context.Background(), dto.SubmitExamRequest{
		PaperID:   99,
		StudentID: 7,
		Answers:   map[uint][]string{1: {"B"}},
	})
	require.ErrorIs(t, err, ErrPaperNotFound)
}

func TestGradeServiceReviewShortAnswer(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	results := []grading.Result{
		{QuestionID: 1, Correct: true, Score: 2, Status: grading.StatusAuto},
		{QuestionID: 5, Correct: false, Score: 0, Status: grading.StatusPending},
	}
	submissions := &fakeSubmissionRepo{
		submission: models.ExamSubmission{
			ID:        100,
			PaperID:   1,
			StudentID: 7,
			Answers:   mustJSON(map[uint][]string{1: {"B"}, 5: {"要加强长城保护"}}),
			Results:   mustJSON(results),
			Score:     2,
			Status:    models.SubmissionStatusPendingReview,
		},
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	response, err := svc.ReviewShortAnswer(context.Background(), 100, dto.ReviewShortAnswerRequest{
		QuestionID: 5,
		Score:      4,
		Correct:    true,
	}, ActivityActor{ID: 9, Role: "teacher"})
	require.NoError(t, err)

	require.Equal(t, models.SubmissionStatusGraded, response.Status)
	require.InDelta(t, 6.0, response.Score, 1e-9)
	require.NotNil(t, response.GradedAt)
	require.Equal(t, 1, submissions.updateCalls)

	// A second review of the same question is no longer pending.
	_, err = svc.ReviewShortAnswer(context.Background(), 100, dto.ReviewShortAnswerRequest{
		QuestionID: 5,
		Score:      4,
		Correct:    true,
	}, ActivityActor{ID: 9, Role: "teacher"})
	require.ErrorIs(t, err, ErrReviewNotPending)
}

func TestGradeServiceReviewScoreExceedsMax(t *testing.T) {
	papers := &fakePaperRepo{paper: publishedPaper()}
	submissions := &fakeSubmissionRepo{
		submission: models.ExamSubmission{
			ID:      100,
			PaperID: 1,
			Results: mustJSON([]grading.Result{
				{QuestionID: 5, Status: grading.StatusPending},
			}),
			Status: models.SubmissionStatusPendingReview,
		},
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewGradeService(papers, submissions, validate, nil, nil, testLogger())

	_, err := svc.ReviewShortAnswer(context.Background(), 100, dto.ReviewShortAnswerRequest{
		QuestionID: 5,
		Score:      50,
		Correct:    true,
	}, ActivityActor{ID: 9, Role: "teacher"})
	require.ErrorIs(t, err, ErrScoreExceedsMax)
	require.Equal(t, 0, submissions.updateCalls)
}
