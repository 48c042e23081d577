package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func newCourseServiceForTest(f *submissionFixture) *courseService {
	svc := NewCourseService(
		repository.NewCourseRepository(f.db),
		repository.NewEnrollmentRepository(f.db),
		testValidator(),
		NewActivityService(repository.NewActivityLogRepository(f.db), testLogger()),
		testLogger(),
	).(*courseService)
	svc.now = func() time.Time { return f.now }
	return svc
}

func TestCourseServiceCreateAndList(t *testing.T) {
	fixture := newSubmissionFixture(t, nil)
	svc := newCourseServiceForTest(fixture)

	draft, err := svc.Create(context.Background(), dto.CourseCreateRequest{Title: "Compilers"}, fixture.teacherActor())
	require.NoError(t, err)
	require.Equal(t, models.CourseStatusDraft, draft.Status)
	require.Equal(t, fixture.teacher.ID, draft.InstructorID)

	published, err := svc.Create(context.Background(), dto.CourseCreateRequest{Title: "Operating Systems", Publish: true}, fixture.teacherActor())
	require.NoError(t, err)
	require.Equal(t, models.CourseStatusPublished, published.Status)

	courses, err := svc.ListPublished(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	for _, course := range courses {
		require.NotEqual(t, draft.ID, course.ID)
	}

	filtered, err := svc.ListPublished(context.Background(), "operating")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, published.ID, filtered[0].ID)

	_, err = svc.Create(context.Background(), dto.CourseCreateRequest{}, fixture.teacherActor())
	require.Error(t, err)
}

func TestCourseServiceEnroll(t *testing.T) {
	fixture := newSubmissionFixture(t, nil)
	svc := newCourseServiceForTest(fixture)

	learner := models.User{Name: "New Learner", Email: "new@school.test", Role: models.RoleStudent}
	require.NoError(t, fixture.db.Create(&learner).Error)
	actor := ActivityActor{ID: learner.ID, Role: models.RoleStudent}

	enrollment, err := svc.Enroll(context.Background(), fixture.course.ID, actor)
	require.NoError(t, err)
	require.Equal(t, learner.ID, enrollment.UserID)
	require.True(t, enrollment.EnrolledAt.Equal(fixture.now))

	_, err = svc.Enroll(context.Background(), fixture.course.ID, actor)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	mine, err := svc.ListEnrollments(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, fixture.course.ID, mine[0].CourseID)

	_, err = svc.Enroll(context.Background(), uuid.New(), actor)
	require.ErrorIs(t, err, ErrCourseNotFound)

	draft := models.Course{Title: "Unreleased", Status: models.CourseStatusDraft, InstructorID: fixture.teacher.ID}
	require.NoError(t, fixture.db.Create(&draft).Error)
	_, err = svc.Enroll(context.Background(), draft.ID, actor)
	require.ErrorIs(t, err, ErrCourseNotOpen)
}

func TestCourseServiceUnenroll(t *testing.T) {
	fixture := newSubmissionFixture(t, nil)
	svc := newCourseServiceForTest(fixture)

	require.NoError(t, svc.Unenroll(context.Background(), fixture.course.ID, fixture.studentActor()))
	require.ErrorIs(t, svc.Unenroll(context.Background(), fixture.course.ID, fixture.studentActor()), ErrEnrollmentNotFound)

	submissions := fixture.service()
	_, err := submissions.Submit(fixture.ctx(), fixture.submit("after leaving"))
	requireSubmissionError(t, err, CodeNotEnrolled)
}

func TestCanManageCourse(t *testing.T) {
	owner := uuid.New()
	course := models.Course{InstructorID: owner}

	require.True(t, canManageCourse(course, ActivityActor{ID: owner, Role: models.RoleTeacher}))
	require.True(t, canManageCourse(course, ActivityActor{ID: uuid.New(), Role: models.RoleAdmin}))
	require.False(t, canManageCourse(course, ActivityActor{ID: uuid.New(), Role: models.RoleTeacher}))
	require.False(t, canManageCourse(course, ActivityActor{ID: owner, Role: models.RoleStudent}))
}

func TestCourseServiceSanitizesDescription(t *testing.T) {
	fixture := newSubmissionFixture(t, nil)
	svc := newCourseServiceForTest(fixture)

	course, err := svc.Create(context.Background(), dto.CourseCreateRequest{
		Title:       "Networks",
		Description: `<em>TCP</em> basics<script>document.cookie</script>`,
	}, fixture.teacherActor())
	require.NoError(t, err)
	require.Equal(t, "<em>TCP</em> basics", course.Description)
}
