package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AssignmentStatusDraft     = "draft"
	AssignmentStatusPublished = "published"
	AssignmentStatusClosed    = "closed"
)

// Assignment is a piece of coursework learners submit against.
type Assignment struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"courseId"`
	Title               string     `gorm:"size:255;not null" json:"title"`
	Description         string     `gorm:"type:text" json:"description"`
	DueDate             *time.Time `json:"dueDate"`
	Weight              float64    `gorm:"not null" json:"weight"`
	AllowLateSubmission bool       `gorm:"not null" json:"allowLateSubmission"`
	AllowResubmission   bool       `gorm:"not null" json:"allowResubmission"`
	Status              string     `gorm:"size:16;not null;index" json:"status"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsPastDue returns true when reference is strictly after the due date.
// Assignments without a due date are never past due.
func (a Assignment) IsPastDue(reference time.Time) bool {
	if a.DueDate == nil {
		return false
	}
	return reference.After(*a.DueDate)
}

// IsVisible reports whether learners may see the assignment.
func (a Assignment) IsVisible() bool {
	return a.Status == AssignmentStatusPublished || a.Status == AssignmentStatusClosed
}

// IsClosed reports whether the assignment no longer accepts submissions.
func (a Assignment) IsClosed() bool {
	return a.Status == AssignmentStatusClosed
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (a Assignment) CanTransitionTo(next string) bool {
	switch a.Status {
	case AssignmentStatusDraft:
		return next == AssignmentStatusPublished
	case AssignmentStatusPublished:
		return next == AssignmentStatusClosed
	default:
		return false
	}
}
