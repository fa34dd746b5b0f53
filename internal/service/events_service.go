package service

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Pipeline event subjects, published whenever a submission changes status.
const (
	SubjectSubmissionAnalyzing = "cegas.submission.analyzing"
	SubjectSubmissionAnalyzed  = "cegas.submission.analyzed"
	SubjectSubmissionGraded    = "cegas.submission.graded"
	SubjectSubmissionFailed    = "cegas.submission.failed"
)

// SubmissionEvent is the wire payload for pipeline status events.
type SubmissionEvent struct {
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher emits pipeline status events for downstream consumers.
type EventPublisher interface {
	PublishSubmissionEvent(subject string, event SubmissionEvent)
}

type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
	now    func() time.Time
}

// NewEventPublisher constructs a NATS-backed publisher. A nil connection
// yields a publisher that drops events, so the pipeline keeps working when
// the broker is not configured.
func NewEventPublisher(conn *nats.Conn, logger zerolog.Logger) EventPublisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
		now:    time.Now,
	}
}

func (p *natsPublisher) PublishSubmissionEvent(subject string, event SubmissionEvent) {
	if p.conn == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode submission event")
		return
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish submission event")
	}
}
