package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

type assignmentEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    dto.AssignmentResponse `json:"data"`
}

func TestAssignmentLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	coursePath := fmt.Sprintf("/api/courses/%s/assignments", env.course.ID)

	due := time.Now().UTC().Add(96 * time.Hour).Format(time.RFC3339)
	resp := env.do(t, http.MethodPost, coursePath, map[string]interface{}{
		"title":             "Indexing lab",
		"description":       "B-trees and hash indexes",
		"dueDate":           due,
		"weight":            15,
		"allowResubmission": true,
	}, &env.teacher)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created assignmentEnvelope
	decodeResponse(t, resp, &created)
	require.True(t, created.Success)
	require.Equal(t, models.AssignmentStatusDraft, created.Data.Status)

	assignmentPath := fmt.Sprintf("/api/assignments/%s", created.Data.ID)

	resp = env.do(t, http.MethodPatch, assignmentPath, map[string]interface{}{"title": "Indexing lab (revised)"}, &env.teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated assignmentEnvelope
	decodeResponse(t, resp, &updated)
	require.Equal(t, "Indexing lab (revised)", updated.Data.Title)

	resp = env.do(t, http.MethodPost, assignmentPath+"/close", nil, &env.teacher)
	requireErrorResponse(t, resp, fiber.StatusConflict, "CONFLICT")

	resp = env.do(t, http.MethodPost, assignmentPath+"/publish", nil, &env.teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, assignmentPath+"/close", nil, &env.teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var closed assignmentEnvelope
	decodeResponse(t, resp, &closed)
	require.Equal(t, models.AssignmentStatusClosed, closed.Data.Status)

	resp = env.do(t, http.MethodPatch, assignmentPath, map[string]interface{}{"title": "Too late"}, &env.teacher)
	requireErrorResponse(t, resp, fiber.StatusConflict, "CONFLICT")
}

func TestAssignmentEndpointsEnforceRoles(t *testing.T) {
	env := newTestEnv(t)
	coursePath := fmt.Sprintf("/api/courses/%s/assignments", env.course.ID)

	resp := env.do(t, http.MethodPost, coursePath, map[string]interface{}{"title": "Student made"}, &env.student)
	requireErrorResponse(t, resp, fiber.StatusForbidden, "FORBIDDEN")

	otherTeacher := models.User{Name: "Other", Email: "other@school.test", Role: models.RoleTeacher}
	require.NoError(t, env.db.Create(&otherTeacher).Error)
	resp = env.do(t, http.MethodPost, coursePath, map[string]interface{}{"title": "Not my course"}, &otherTeacher)
	requireErrorResponse(t, resp, fiber.StatusForbidden, "FORBIDDEN")

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/assignments/%s/publish", uuid.New()), nil, &env.teacher)
	requireErrorResponse(t, resp, fiber.StatusNotFound, "NOT_FOUND")
}

func TestAssignmentCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	coursePath := fmt.Sprintf("/api/courses/%s/assignments", env.course.ID)

	resp := env.do(t, http.MethodPost, coursePath, map[string]interface{}{"title": "x"}, &env.teacher)
	envelope := requireErrorResponse(t, resp, fiber.StatusBadRequest, "VALIDATION_FAILED")
	require.Contains(t, envelope.Error.Details, "Title")

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	resp = env.do(t, http.MethodPost, coursePath, map[string]interface{}{"title": "Past", "dueDate": past}, &env.teacher)
	requireErrorResponse(t, resp, fiber.StatusBadRequest, "VALIDATION_FAILED")
}

func TestListCourseAssignments(t *testing.T) {
	env := newTestEnv(t)
	draft := models.Assignment{CourseID: env.course.ID, Title: "Hidden", Status: models.AssignmentStatusDraft}
	require.NoError(t, env.db.Create(&draft).Error)
	coursePath := fmt.Sprintf("/api/courses/%s/assignments", env.course.ID)

	var studentView struct {
		Data []dto.AssignmentResponse `json:"data"`
	}
	resp := env.do(t, http.MethodGet, coursePath, nil, &env.student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &studentView)
	require.Len(t, studentView.Data, 1)
	require.Equal(t, env.assignment.ID, studentView.Data[0].ID)

	var teacherView struct {
		Data []dto.AssignmentResponse `json:"data"`
	}
	resp = env.do(t, http.MethodGet, coursePath, nil, &env.teacher)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &teacherView)
	require.Len(t, teacherView.Data, 2)

	outsider := models.User{Name: "Visitor", Email: "visitor@school.test", Role: models.RoleStudent}
	require.NoError(t, env.db.Create(&outsider).Error)
	resp = env.do(t, http.MethodGet, coursePath, nil, &outsider)
	requireErrorResponse(t, resp, fiber.StatusForbidden, "NOT_ENROLLED")
}
