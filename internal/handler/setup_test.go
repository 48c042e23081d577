package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	teacher    models.User
	student    models.User
	course     models.Course
	assignment models.Assignment
}

// newTestEnv wires the full router over an in-memory database seeded with one
// instructor, one enrolled student and a published assignment due in three days.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.ActivityLog{},
	))

	env := &testEnv{db: db}
	env.teacher = models.User{Name: "Grace Teacher", Email: "grace@school.test", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&env.teacher).Error)
	env.student = models.User{Name: "Lin Student", Email: "lin@school.test", Role: models.RoleStudent}
	require.NoError(t, db.Create(&env.student).Error)

	env.course = models.Course{Title: "Databases", Status: models.CourseStatusPublished, InstructorID: env.teacher.ID}
	require.NoError(t, db.Create(&env.course).Error)
	require.NoError(t, db.Create(&models.Enrollment{UserID: env.student.ID, CourseID: env.course.ID, EnrolledAt: time.Now().UTC()}).Error)

	due := time.Now().UTC().Add(72 * time.Hour)
	env.assignment = models.Assignment{
		CourseID:          env.course.ID,
		Title:             "Normalization worksheet",
		DueDate:           &due,
		AllowResubmission: true,
		Status:            models.AssignmentStatusPublished,
	}
	require.NoError(t, db.Create(&env.assignment).Error)

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Identity:    service.NewSessionIdentityProvider(userRepo),
		Enrollments: enrollmentRepo,
		Assignments: assignmentRepo,
		Submissions: submissionRepo,
		Activity:    activityService,
	}, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "LMS Test", AppEnv: "test"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, nil, logger),
		AssignmentHandler: handler.NewAssignmentHandler(service.NewAssignmentService(assignmentRepo, courseRepo, enrollmentRepo, validate, activityService, logger), logger),
		CourseHandler:     handler.NewCourseHandler(service.NewCourseService(courseRepo, enrollmentRepo, validate, activityService, logger), logger),
		GradingHandler:    handler.NewGradingHandler(service.NewGradingService(submissionRepo, assignmentRepo, courseRepo, validate, activityService, logger), logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:     middleware.JWTProtected(testSecret),
	})
	env.app = app

	return env
}

func signToken(t *testing.T, user models.User) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// do performs a request as user. body may be nil, a raw string, or a value to JSON encode.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, user *models.User) *http.Response {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+signToken(t, *user))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) submitPath() string {
	return fmt.Sprintf("/api/assignments/%s/submit?courseId=%s", e.assignment.ID, e.course.ID)
}

func (e *testEnv) statusPath() string {
	return fmt.Sprintf("/api/assignments/%s/my-submission?courseId=%s", e.assignment.ID, e.course.ID)
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

type errorEnvelope struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func requireErrorResponse(t *testing.T, resp *http.Response, status int, code string) errorEnvelope {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var envelope errorEnvelope
	decodeResponse(t, resp, &envelope)
	require.Equal(t, code, envelope.Error.Code, envelope.Error.Message)
	require.NotEmpty(t, envelope.Error.Message)
	return envelope
}
