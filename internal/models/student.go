package models

import (
	"time"

	"gorm.io/gorm"
)

// Student statuses used by admin management and bulk operations.
const (
	StudentStatusActive   = "active"
	StudentStatusArchived = "archived"
)

// Student represents a learner that can take papers and submit answers.
type Student struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Email     string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Class     string         `gorm:"size:64;index" json:"class"`
	Status    string         `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
