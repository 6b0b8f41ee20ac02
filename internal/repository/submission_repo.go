package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	PaperID   *uint
	StudentID *uint
	Status    *string
}

// SubmissionRepository defines data operations for exam submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.ExamSubmission, error)
	GetByID(ctx context.Context, id uint) (models.ExamSubmission, error)
	GetByPaperAndStudent(ctx context.Context, paperID, studentID uint) (models.ExamSubmission, error)
	Create(ctx context.Context, submission *models.ExamSubmission) error
	Update(ctx context.Context, submission *models.ExamSubmission) error
	CountByStudent(ctx context.Context, studentID uint, status string) (int64, error)
	AverageScoreByStudent(ctx context.Context, studentID uint) (float64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ExamSubmission{}).
		Preload("Paper").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.ExamSubmission, error) {
	query := r.baseQuery(ctx)

	if filter.PaperID != nil {
		query = query.Where("paper_id = ?", *filter.PaperID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.ExamSubmission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.ExamSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByPaperAndStudent(ctx context.Context, paperID, studentID uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	if err := r.baseQuery(ctx).
		Where("paper_id = ?", paperID).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&submission).Error; err != nil {
		return models.ExamSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.ExamSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.ExamSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) CountByStudent(ctx context.Context, studentID uint, status string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ExamSubmission{}).
		Where("student_id = ?", studentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *submissionRepository) AverageScoreByStudent(ctx context.Context, studentID uint) (float64, error) {
	var average *float64
	if err := r.db.WithContext(ctx).Model(&models.ExamSubmission{}).
		Select("AVG(score)").
		Where("student_id = ?", studentID).
		Where("status = ?", models.SubmissionStatusGraded).
		Scan(&average).Error; err != nil {
		return 0, err
	}

	if average == nil {
		return 0, nil
	}
	return *average, nil
}
