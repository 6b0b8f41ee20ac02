package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mingke-lab/exam-go-api/internal/models"
)

// PaperFilter allows narrowing paper queries.
type PaperFilter struct {
	Subject *string
	Status  *string
}

// PaperRepository defines data operations for papers.
type PaperRepository interface {
	List(ctx context.Context, filter PaperFilter) ([]models.Paper, error)
	GetByID(ctx context.Context, id uint) (models.Paper, error)
	GetWithQuestions(ctx context.Context, id uint) (models.Paper, error)
	Create(ctx context.Context, paper *models.Paper) error
	Update(ctx context.Context, paper *models.Paper) error
	UpdateTotalPoints(ctx context.Context, id uint) error
}

type paperRepository struct {
	db *gorm.DB
}

// NewPaperRepository instantiates the repository.
func NewPaperRepository(db *gorm.DB) PaperRepository {
	return &paperRepository{db: db}
}

func (r *paperRepository) List(ctx context.Context, filter PaperFilter) ([]models.Paper, error) {
	query := r.db.WithContext(ctx).Model(&models.Paper{})

	if filter.Subject != nil {
		query = query.Where("subject = ?", *filter.Subject)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var papers []models.Paper
	if err := query.Order("created_at DESC").Find(&papers).Error; err != nil {
		return nil, err
	}

	return papers, nil
}

func (r *paperRepository) GetByID(ctx context.Context, id uint) (models.Paper, error) {
	var paper models.Paper
	if err := r.db.WithContext(ctx).First(&paper, id).Error; err != nil {
		return models.Paper{}, err
	}

	return paper, nil
}

func (r *paperRepository) GetWithQuestions(ctx context.Context, id uint) (models.Paper, error) {
	var paper models.Paper
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC, questions.id ASC")
		}).
		First(&paper, id).Error; err != nil {
		return models.Paper{}, err
	}

	return paper, nil
}

func (r *paperRepository) Create(ctx context.Context, paper *models.Paper) error {
	return r.db.WithContext(ctx).Create(paper).Error
}

func (r *paperRepository) Update(ctx context.Context, paper *models.Paper) error {
	return r.db.WithContext(ctx).Save(paper).Error
}

// UpdateTotalPoints recomputes the paper's point total from its questions.
func (r *paperRepository) UpdateTotalPoints(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Paper{}).
		Where("id = ?", id).
		Update("total_points", r.db.Model(&models.Question{}).
			Select("COALESCE(SUM(points), 0)").
			Where("paper_id = ?", id),
		).Error
}
