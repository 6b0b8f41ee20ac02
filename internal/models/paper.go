package models

import (
	"time"

	"gorm.io/datatypes"
)

// Paper statuses.
const (
	PaperStatusDraft     = "draft"
	PaperStatusPublished = "published"
	PaperStatusClosed    = "closed"
)

// Paper represents an exam paper assembled from questions.
type Paper struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Subject     string     `gorm:"size:128;index" json:"subject"`
	Status      string     `gorm:"size:32;not null;default:draft" json:"status"`
	Duration    int        `gorm:"not null;default:60" json:"duration_minutes"`
	TotalPoints float64    `json:"total_points"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// IsPublished reports whether students may take the paper.
func (p Paper) IsPublished() bool {
	return p.Status == PaperStatusPublished
}

// Question represents a single exam question belonging to a paper.
// Options holds the choice labels for choice kinds; Answer holds the
// canonical answer as a JSON array of strings (one value, or an ordered
// sequence for multi-blank fill questions).
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PaperID   uint           `gorm:"index;not null" json:"paper_id"`
	Kind      string         `gorm:"size:32;not null" json:"kind"`
	Prompt    string         `gorm:"type:text;not null" json:"prompt"`
	Options   datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	Answer    datatypes.JSON `gorm:"type:json" json:"-"`
	Points    float64        `gorm:"not null;default:1" json:"points"`
	Position  int            `gorm:"not null;default:0" json:"position"`
	ImageURL  string         `gorm:"size:512" json:"image_url,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
