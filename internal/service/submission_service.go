package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

const (
	messageSubmitted   = "Assignment submitted successfully"
	messageResubmitted = "Assignment resubmitted successfully"
	messageLateAllowed = "The deadline has passed; your submission will be marked late"
	messageResubmit    = "You have already submitted this assignment and may resubmit"
)

// SubmissionService runs the submit pipeline and the read-only status query.
type SubmissionService interface {
	Submit(ctx context.Context, cmd dto.SubmitCommand) (dto.SubmitAssignmentResponse, error)
	Status(ctx context.Context, query dto.SubmissionStatusQuery) (dto.SubmissionStatusResponse, error)
}

// SubmissionDependencies groups the collaborators of the submission service.
// Recorder defaults to a recorder over Submissions; Locker, Events and Activity are optional.
type SubmissionDependencies struct {
	Identity    IdentityProvider
	Enrollments EnrollmentLookup
	Assignments AssignmentLookup
	Submissions SubmissionStore
	Recorder    SubmissionRecorder
	Locker      SubmissionLocker
	Events      SubmissionEventPublisher
	Activity    ActivityRecorder
}

type submissionService struct {
	identity    IdentityProvider
	enrollments EnrollmentLookup
	assignments AssignmentLookup
	submissions SubmissionStore
	recorder    SubmissionRecorder
	locker      SubmissionLocker
	events      SubmissionEventPublisher
	activity    ActivityRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission orchestrator.
func NewSubmissionService(deps SubmissionDependencies, logger zerolog.Logger) SubmissionService {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = NewSubmissionRecorder(deps.Submissions)
	}

	return &submissionService{
		identity:    deps.Identity,
		enrollments: deps.Enrollments,
		assignments: deps.Assignments,
		submissions: deps.Submissions,
		recorder:    recorder,
		locker:      deps.Locker,
		events:      deps.Events,
		activity:    deps.Activity,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/submission"),
		now:         time.Now,
	}
}

// submitState accumulates what each step learns for the steps after it.
type submitState struct {
	cmd        dto.SubmitCommand
	userID     uuid.UUID
	assignment models.Assignment
	checkedAt  time.Time
	deadline   DeadlineResult
	content    ContentValidation
	decision   ResubmissionDecision
	release    func()
	result     RecordResult
}

type submitStep struct {
	name SubmitStep
	run  func(ctx context.Context, state *submitState) error
}

// pipeline is the fixed step order. Record is the only step with a side effect.
func (s *submissionService) pipeline() []submitStep {
	return []submitStep{
		{name: StepAuthCheck, run: s.authCheck},
		{name: StepEnrollmentCheck, run: s.enrollmentCheck},
		{name: StepAssignmentCheck, run: s.assignmentCheck},
		{name: StepDeadlineCheck, run: s.deadlineCheck},
		{name: StepContentValidation, run: s.contentValidation},
		{name: StepResubmissionCheck, run: s.resubmissionCheck},
		{name: StepRecord, run: s.record},
	}
}

func (s *submissionService) Submit(ctx context.Context, cmd dto.SubmitCommand) (dto.SubmitAssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.String("submission.assignment_id", cmd.AssignmentID.String()),
		attribute.String("submission.course_id", cmd.CourseID.String()),
	))
	defer span.End()

	started := time.Now()
	state := &submitState{cmd: cmd}
	defer func() {
		if state.release != nil {
			state.release()
		}
	}()

	logger := s.logger.With().
		Str("assignment_id", cmd.AssignmentID.String()).
		Str("course_id", cmd.CourseID.String()).
		Str("claimed_user_id", cmd.UserID).
		Logger()

	for _, step := range s.pipeline() {
		if err := step.run(ctx, state); err != nil {
			failure := asSubmissionError(err, step.name)
			s.observeFailure(logger, span, failure, started)
			return dto.SubmitAssignmentResponse{}, failure
		}
	}

	submission := state.result.Submission
	outcome := "submitted"
	message := messageSubmitted
	if state.result.Resubmitted {
		outcome = "resubmitted"
		message = messageResubmitted
	}

	span.SetAttributes(
		attribute.String("submission.id", submission.ID.String()),
		attribute.String("submission.outcome", outcome),
		attribute.Bool("submission.is_late", submission.IsLate),
	)
	observability.SubmissionOutcomes().WithLabelValues(outcome, "").Inc()
	observability.SubmissionDuration().WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	logger.Info().
		Str("submission_id", submission.ID.String()).
		Str("user_id", state.userID.String()).
		Str("outcome", outcome).
		Bool("is_late", submission.IsLate).
		Msg("submission recorded")

	s.afterRecord(ctx, logger, state)

	return dto.SubmitAssignmentResponse{
		Success:    true,
		Message:    message,
		Submission: dto.NewSubmissionResponse(submission),
	}, nil
}

func (s *submissionService) authCheck(ctx context.Context, state *submitState) error {
	userID, err := VerifyAuth(ctx, s.identity, state.cmd.UserID)
	if err != nil {
		return err
	}
	state.userID = userID
	return nil
}

func (s *submissionService) enrollmentCheck(ctx context.Context, state *submitState) error {
	return CheckEnrollment(ctx, s.enrollments, state.userID, state.cmd.CourseID)
}

func (s *submissionService) assignmentCheck(ctx context.Context, state *submitState) error {
	assignment, err := VerifyAssignment(ctx, s.assignments, state.cmd.AssignmentID, state.cmd.CourseID)
	if err != nil {
		return err
	}
	if err := CheckSubmittable(assignment); err != nil {
		return err
	}
	state.assignment = assignment
	return nil
}

func (s *submissionService) deadlineCheck(_ context.Context, state *submitState) error {
	state.checkedAt = s.now()
	deadline, err := CheckDeadline(state.assignment, state.checkedAt)
	state.deadline = deadline
	return err
}

func (s *submissionService) contentValidation(_ context.Context, state *submitState) error {
	content := SubmissionContent{ContentText: state.cmd.ContentText}
	if state.cmd.ContentLink != nil {
		content.ContentLink = *state.cmd.ContentLink
	}

	validation := ValidateContent(content)
	if !validation.Valid {
		err := newSubmissionError(ErrContentInvalid, nil)
		err.Fields = validation.Errors
		return err
	}
	state.content = validation
	return nil
}

func (s *submissionService) resubmissionCheck(ctx context.Context, state *submitState) error {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, state.assignment.ID, state.userID)
		if err != nil {
			if errors.Is(err, ErrSubmissionLocked) {
				return newSubmissionError(ErrSubmissionInProgress, err)
			}
			return fetchError("failed to acquire submission lock", err)
		}
		state.release = release
	}

	decision, _, err := CheckResubmission(ctx, s.submissions, state.assignment.ID, state.userID, state.assignment.AllowResubmission)
	state.decision = decision
	return err
}

func (s *submissionService) record(ctx context.Context, state *submitState) error {
	result, err := s.recorder.Record(ctx, RecordInput{
		UserID:            state.userID,
		AssignmentID:      state.assignment.ID,
		Decision:          state.decision,
		AllowResubmission: state.assignment.AllowResubmission,
		Content:           state.content,
		IsLate:            state.deadline.IsLate,
		SubmittedAt:       state.checkedAt.UTC(),
	})
	if err != nil {
		var submissionErr *SubmissionError
		if errors.As(err, &submissionErr) {
			return submissionErr
		}
		return fetchError("failed to record submission", err)
	}
	state.result = result
	return nil
}

func (s *submissionService) observeFailure(logger zerolog.Logger, span trace.Span, failure *SubmissionError, started time.Time) {
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Code)
	span.SetAttributes(attribute.String("submission.failed_step", string(failure.Step)))

	observability.SubmissionOutcomes().WithLabelValues(failure.Code, string(failure.Step)).Inc()
	observability.SubmissionDuration().WithLabelValues("rejected").Observe(time.Since(started).Seconds())

	event := logger.Warn()
	if failure.Kind == KindFetchError {
		event = logger.Error().Err(failure.Err)
	}
	event.
		Str("step", string(failure.Step)).
		Str("code", failure.Code).
		Msg("submission rejected")
}

// afterRecord publishes the domain event and writes the audit entry. The row is already
// persisted, so failures here are logged and never reach the caller.
func (s *submissionService) afterRecord(ctx context.Context, logger zerolog.Logger, state *submitState) {
	submission := state.result.Submission
	correlationID := session.CorrelationID(ctx)

	if s.events != nil {
		event := SubmissionRecordedEvent{
			SubmissionID: submission.ID,
			AssignmentID: submission.AssignmentID,
			CourseID:     state.assignment.CourseID,
			UserID:       submission.UserID,
			Resubmission: state.result.Resubmitted,
			IsLate:       submission.IsLate,
			SubmittedAt:  submission.SubmittedAt,

			CorrelationID: correlationID,
		}
		if err := s.events.PublishSubmissionRecorded(ctx, event); err != nil {
			logger.Warn().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to publish submission event")
		}
	}

	if s.activity != nil {
		action := "submission.created"
		if state.result.Resubmitted {
			action = "submission.resubmitted"
		}
		role := models.RoleStudent
		if current, ok := session.FromContext(ctx); ok && current.Role != "" {
			role = current.Role
		}
		metadata := map[string]interface{}{
			"assignment_id": submission.AssignmentID.String(),
			"course_id":     state.assignment.CourseID.String(),
			"is_late":       submission.IsLate,
		}
		if correlationID != "" {
			metadata["correlation_id"] = correlationID
		}
		entityID := submission.ID
		_, err := s.activity.Record(ctx, ActivityEntry{
			ActorID:    state.userID,
			ActorRole:  role,
			Action:     action,
			EntityType: "submission",
			EntityID:   &entityID,
			Metadata:   metadata,
		})
		if err != nil {
			logger.Warn().Err(err).Str("submission_id", submission.ID.String()).Msg("failed to record submission activity")
		}
	}
}

// Status reports what the caller may do without persisting anything. Prerequisite
// checks run concurrently and are then evaluated in the same order as Submit, so the
// first reported failure matches what Submit would return.
func (s *submissionService) Status(ctx context.Context, query dto.SubmissionStatusQuery) (dto.SubmissionStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.status", trace.WithAttributes(
		attribute.String("submission.assignment_id", query.AssignmentID.String()),
		attribute.String("submission.course_id", query.CourseID.String()),
	))
	defer span.End()

	userID, err := uuid.Parse(strings.TrimSpace(query.UserID))
	if err != nil {
		_, authErr := VerifyAuth(ctx, s.identity, query.UserID)
		return dto.SubmissionStatusResponse{}, s.statusFailure(span, asSubmissionError(authErr, StepAuthCheck))
	}

	var (
		authErr, enrollmentErr, assignmentErr, lookupErr error
		assignment                                       models.Assignment
		existing                                         *models.Submission
	)

	var group errgroup.Group
	group.Go(func() error {
		_, authErr = VerifyAuth(ctx, s.identity, query.UserID)
		return nil
	})
	group.Go(func() error {
		enrollmentErr = CheckEnrollment(ctx, s.enrollments, userID, query.CourseID)
		return nil
	})
	group.Go(func() error {
		assignment, assignmentErr = VerifyAssignment(ctx, s.assignments, query.AssignmentID, query.CourseID)
		return nil
	})
	group.Go(func() error {
		existing, lookupErr = findExistingSubmission(ctx, s.submissions, query.AssignmentID, userID)
		return nil
	})
	_ = group.Wait()

	prerequisites := []struct {
		step SubmitStep
		err  error
	}{
		{step: StepAuthCheck, err: authErr},
		{step: StepEnrollmentCheck, err: enrollmentErr},
		{step: StepAssignmentCheck, err: assignmentErr},
		{step: StepSubmissionLookup, err: lookupErr},
	}
	for _, prerequisite := range prerequisites {
		if prerequisite.err != nil {
			return dto.SubmissionStatusResponse{}, s.statusFailure(span, asSubmissionError(prerequisite.err, prerequisite.step))
		}
	}

	response := dto.SubmissionStatusResponse{
		HasSubmission: existing != nil,
		Deadline:      assignment.DueDate,
	}
	if existing != nil {
		current := dto.NewSubmissionResponse(*existing)
		response.Submission = &current
	}

	deadline, deadlineErr := CheckDeadline(assignment, s.now())
	response.IsLate = deadline.IsLate

	blocking := CheckSubmittable(assignment)
	if blocking == nil {
		blocking = deadlineErr
	}
	if blocking == nil {
		_, blocking = DecideResubmission(existing, assignment.AllowResubmission)
	}

	result := "eligible"
	if blocking != nil {
		failure := asSubmissionError(blocking, "")
		response.Message = failure.Message
		result = failure.Code
	} else {
		response.CanSubmit = existing == nil
		response.CanResubmit = existing != nil
		switch {
		case deadline.IsLate:
			response.Message = messageLateAllowed
		case existing != nil:
			response.Message = messageResubmit
		}
	}

	span.SetAttributes(
		attribute.Bool("submission.can_submit", response.CanSubmit),
		attribute.Bool("submission.can_resubmit", response.CanResubmit),
	)
	observability.StatusQueries().WithLabelValues(result).Inc()
	s.logger.Debug().
		Str("assignment_id", query.AssignmentID.String()).
		Str("user_id", userID.String()).
		Str("result", result).
		Msg("submission status evaluated")

	return response, nil
}

func (s *submissionService) statusFailure(span trace.Span, failure *SubmissionError) error {
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Code)
	observability.StatusQueries().WithLabelValues(failure.Code).Inc()
	if failure.Kind == KindFetchError {
		s.logger.Error().Err(failure.Err).Str("step", string(failure.Step)).Msg("submission status lookup failed")
	}
	return failure
}
