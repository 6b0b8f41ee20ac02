package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/models"
	"github.com/mingke-lab/exam-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakePaperRepo struct {
	paper models.Paper
	err   error
}

func (f *fakePaperRepo) List(ctx context.Context, filter repository.PaperFilter) ([]models.Paper, error) {
	return []models.Paper{f.paper}, f.err
}

func (f *fakePaperRepo) GetByID(ctx context.Context, id uint) (models.Paper, error) {
	if f.err != nil {
		return models.Paper{}, f.err
	}
	if f.paper.ID != id {
		return models.Paper{}, gorm.ErrRecordNotFound
	}
	return f.paper, nil
}

func (f *fakePaperRepo) GetWithQuestions(ctx context.Context, id uint) (models.Paper, error) {
	return f.GetByID(ctx, id)
}

func (f *fakePaperRepo) Create(ctx context.Context, paper *models.Paper) error {
	paper.ID = 1
	f.paper = *paper
	return f.err
}

func (f *fakePaperRepo) Update(ctx context.Context, paper *models.Paper) error {
	f.paper = *paper
	return f.err
}

func (f *fakePaperRepo) UpdateTotalPoints(ctx context.Context, id uint) error {
	return f.err
}

type fakeSubmissionRepo struct {
	submission  models.ExamSubmission
	createCalls int
	createErrs  int
	updateCalls int
}

func (f *fakeSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.ExamSubmission, error) {
	return []models.ExamSubmission{f.submission}, nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	if f.submission.ID != id {
		return models.ExamSubmission{}, gorm.ErrRecordNotFound
	}
	return f.submission, nil
}

func (f *fakeSubmissionRepo) GetByPaperAndStudent(ctx context.Context, paperID, studentID uint) (models.ExamSubmission, error) {
	return f.submission, nil
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, submission *models.ExamSubmission) error {
	f.createCalls++
	if f.createErrs > 0 {
		f.createErrs--
		return errTransientDB
	}
	submission.ID = 100
	f.submission = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(ctx context.Context, submission *models.ExamSubmission) error {
	f.updateCalls++
	f.submission = *submission
	return nil
}

func (f *fakeSubmissionRepo) CountByStudent(ctx context.Context, studentID uint, status string) (int64, error) {
	return 0, nil
}

func (f *fakeSubmissionRepo) AverageScoreByStudent(ctx context.Context, studentID uint) (float64, error) {
	return 0, nil
}

var errTransientDB = &transientDBError{}

type transientDBError struct{}

func (*transientDBError) Error() string { return "connection reset by peer" }

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(data)
}

func questionFixture(id uint, kind string, answer []string, points float64) models.Question {
	return models.Question{
		ID:     id,
		Kind:   kind,
		Prompt: "prompt",
		Answer: mustJSON(answer),
		Points: points,
	}
}
