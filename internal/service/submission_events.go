package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubmissionRecordedEvent is published after a submission row is written.
type SubmissionRecordedEvent struct {
	SubmissionID uuid.UUID `json:"submissionId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	CourseID     uuid.UUID `json:"courseId"`
	UserID       uuid.UUID `json:"userId"`
	Resubmission bool      `json:"resubmission"`
	IsLate       bool      `json:"isLate"`
	SubmittedAt  time.Time `json:"submittedAt"`

	// CorrelationID ties the event to the HTTP request that recorded it.
	CorrelationID string `json:"correlationId,omitempty"`
}

// SubmissionEventPublisher fans submission events out to downstream consumers such as grading queues.
type SubmissionEventPublisher interface {
	PublishSubmissionRecorded(ctx context.Context, event SubmissionRecordedEvent) error
}

type natsSubmissionPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSubmissionPublisher publishes events on subject. A nil connection yields a nil publisher.
func NewNATSSubmissionPublisher(conn *nats.Conn, subject string) SubmissionEventPublisher {
	if conn == nil {
		return nil
	}
	if subject == "" {
		subject = "lms.submissions.recorded"
	}
	return &natsSubmissionPublisher{conn: conn, subject: subject}
}

func (p *natsSubmissionPublisher) PublishSubmissionRecorded(ctx context.Context, event SubmissionRecordedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject, payload)
}
