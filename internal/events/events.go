package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	eventSource  = "answer-sheet-service"
	eventVersion = "1.0"
)

// EventType represents the kinds of domain events this service emits
type EventType string

const (
	// Exam events
	EventExamPublished EventType = "exam.published"
	EventExamArchived  EventType = "exam.archived"

	// Attempt events
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptRescored  EventType = "attempt.rescored"
)

// Event is the envelope shared by every event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Exam event payloads

type ExamPublishedEvent struct {
	ExamID          uint      `json:"exam_id"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	CreatorID       string    `json:"creator_id"`
	PublishedAt     time.Time `json:"published_at"`
}

type ExamArchivedEvent struct {
	ExamID    uint   `json:"exam_id"`
	Title     string `json:"title"`
	CreatorID string `json:"creator_id"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID string    `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	ExamTitle string    `json:"exam_title"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID       string    `json:"attempt_id"`
	ExamID          uint      `json:"exam_id"`
	StudentID       string    `json:"student_id"`
	Correct         int       `json:"correct"`
	Total           int       `json:"total"`
	Score           float64   `json:"score"`
	SubmittedAt     time.Time `json:"submitted_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Late            bool      `json:"late"`
}

type AttemptRescoredEvent struct {
	AttemptID     string  `json:"attempt_id"`
	ExamID        uint    `json:"exam_id"`
	StudentID     string  `json:"student_id"`
	PreviousScore float64 `json:"previous_score"`
	Score         float64 `json:"score"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewExamPublishedEvent(payload ExamPublishedEvent) *Event {
	return newEvent(EventExamPublished, payload)
}

func NewExamArchivedEvent(payload ExamArchivedEvent) *Event {
	return newEvent(EventExamArchived, payload)
}

func NewAttemptStartedEvent(payload AttemptStartedEvent) *Event {
	return newEvent(EventAttemptStarted, payload)
}

func NewAttemptSubmittedEvent(payload AttemptSubmittedEvent) *Event {
	return newEvent(EventAttemptSubmitted, payload)
}

func NewAttemptRescoredEvent(payload AttemptRescoredEvent) *Event {
	return newEvent(EventAttemptRescored, payload)
}
