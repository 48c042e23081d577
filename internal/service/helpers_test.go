package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

var fixtureNow = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type submissionFixture struct {
	db         *gorm.DB
	now        time.Time
	student    models.User
	teacher    models.User
	course     models.Course
	assignment models.Assignment
	events     *recordingPublisher
}

// newSubmissionFixture seeds an enrolled student and a published assignment due a day
// after fixtureNow. mutate adjusts the assignment before it is stored.
func newSubmissionFixture(t *testing.T, mutate func(*models.Assignment)) *submissionFixture {
	t.Helper()
	db := newTestDB(t)

	teacher := models.User{Name: "Ada Teacher", Email: "ada@school.test", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&teacher).Error)
	student := models.User{Name: "Sam Student", Email: "sam@school.test", Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)

	course := models.Course{Title: "Distributed Systems", Status: models.CourseStatusPublished, InstructorID: teacher.ID}
	require.NoError(t, db.Create(&course).Error)
	require.NoError(t, db.Create(&models.Enrollment{UserID: student.ID, CourseID: course.ID, EnrolledAt: fixtureNow.Add(-72 * time.Hour)}).Error)

	dueDate := fixtureNow.Add(24 * time.Hour)
	assignment := models.Assignment{
		CourseID:          course.ID,
		Title:             "Consensus essay",
		DueDate:           &dueDate,
		Weight:            10,
		AllowResubmission: true,
		Status:            models.AssignmentStatusPublished,
	}
	if mutate != nil {
		mutate(&assignment)
	}
	require.NoError(t, db.Create(&assignment).Error)

	return &submissionFixture{
		db:         db,
		now:        fixtureNow,
		student:    student,
		teacher:    teacher,
		course:     course,
		assignment: assignment,
		events:     &recordingPublisher{},
	}
}

func (f *submissionFixture) deps() SubmissionDependencies {
	return SubmissionDependencies{
		Identity:    NewSessionIdentityProvider(repository.NewUserRepository(f.db)),
		Enrollments: repository.NewEnrollmentRepository(f.db),
		Assignments: repository.NewAssignmentRepository(f.db),
		Submissions: repository.NewSubmissionRepository(f.db),
		Events:      f.events,
		Activity:    NewActivityService(repository.NewActivityLogRepository(f.db), testLogger()),
	}
}

func (f *submissionFixture) service(configure ...func(*SubmissionDependencies)) *submissionService {
	deps := f.deps()
	for _, apply := range configure {
		apply(&deps)
	}
	svc := NewSubmissionService(deps, testLogger()).(*submissionService)
	svc.now = func() time.Time { return f.now }
	return svc
}

func (f *submissionFixture) ctx() context.Context {
	return session.WithUser(context.Background(), session.User{ID: f.student.ID, Role: models.RoleStudent})
}

func (f *submissionFixture) submit(text string) dto.SubmitCommand {
	return dto.SubmitCommand{
		UserID:       f.student.ID.String(),
		AssignmentID: f.assignment.ID,
		CourseID:     f.course.ID,
		ContentText:  text,
	}
}

func (f *submissionFixture) statusQuery() dto.SubmissionStatusQuery {
	return dto.SubmissionStatusQuery{
		UserID:       f.student.ID.String(),
		AssignmentID: f.assignment.ID,
		CourseID:     f.course.ID,
	}
}

func (f *submissionFixture) submissionCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	return count
}

func (f *submissionFixture) storedSubmission(t *testing.T) models.Submission {
	t.Helper()
	var submission models.Submission
	require.NoError(t, f.db.Where("assignment_id = ? AND user_id = ?", f.assignment.ID, f.student.ID).First(&submission).Error)
	return submission
}

func requireSubmissionError(t *testing.T, err error, code string) *SubmissionError {
	t.Helper()
	require.Error(t, err)
	var submissionErr *SubmissionError
	require.ErrorAs(t, err, &submissionErr)
	require.Equal(t, code, submissionErr.Code, submissionErr.Error())
	return submissionErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []SubmissionRecordedEvent
	err    error
}

func (p *recordingPublisher) PublishSubmissionRecorded(_ context.Context, event SubmissionRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type stubIdentity struct {
	user *models.User
	err  error
}

func (s stubIdentity) CurrentUser(context.Context) (*models.User, error) {
	return s.user, s.err
}

type stubEnrollments struct {
	enrolled bool
	err      error
	calls    int
}

func (s *stubEnrollments) Exists(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	s.calls++
	return s.enrolled, s.err
}

type stubAssignments struct {
	assignment models.Assignment
	err        error
}

func (s stubAssignments) GetByID(context.Context, uuid.UUID) (models.Assignment, error) {
	return s.assignment, s.err
}

type stubSubmissions struct {
	submission *models.Submission
	err        error
}

func (s stubSubmissions) GetByAssignmentAndUser(context.Context, uuid.UUID, uuid.UUID) (models.Submission, error) {
	if s.err != nil {
		return models.Submission{}, s.err
	}
	if s.submission == nil {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return *s.submission, nil
}

func ptrString(v string) *string {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}
