package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title               string   `json:"title" validate:"required,min=3,max=255"`
	Description         string   `json:"description" validate:"omitempty,max=10000"`
	DueDate             *string  `json:"dueDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Weight              *float64 `json:"weight" validate:"omitempty,gte=0,lte=100"`
	AllowLateSubmission bool     `json:"allowLateSubmission"`
	AllowResubmission   bool     `json:"allowResubmission"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	Title               *string  `json:"title" validate:"omitempty,min=3,max=255"`
	Description         *string  `json:"description" validate:"omitempty,max=10000"`
	DueDate             *string  `json:"dueDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ClearDueDate        bool     `json:"clearDueDate"`
	Weight              *float64 `json:"weight" validate:"omitempty,gte=0,lte=100"`
	AllowLateSubmission *bool    `json:"allowLateSubmission"`
	AllowResubmission   *bool    `json:"allowResubmission"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CourseID            uuid.UUID  `json:"courseId"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	DueDate             *time.Time `json:"dueDate"`
	Weight              float64    `json:"weight"`
	AllowLateSubmission bool       `json:"allowLateSubmission"`
	AllowResubmission   bool       `json:"allowResubmission"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                  model.ID,
		CourseID:            model.CourseID,
		Title:               model.Title,
		Description:         model.Description,
		DueDate:             model.DueDate,
		Weight:              model.Weight,
		AllowLateSubmission: model.AllowLateSubmission,
		AllowResubmission:   model.AllowResubmission,
		Status:              model.Status,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
