package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestWatermillEventPublisher_Publish(t *testing.T) {
	logger := testLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NewSlogLogger(logger))
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "exam-events")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "exam-events", logger)
	event := NewAttemptSubmittedEvent(AttemptSubmittedEvent{
		AttemptID: "a-1",
		ExamID:    7,
		StudentID: "s-1",
		Correct:   3,
		Total:     4,
		Score:     7.5,
	})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventAttemptSubmitted), msg.Metadata.Get("event_type"))
		assert.Equal(t, eventSource, msg.Metadata.Get("source"))

		var decoded struct {
			Type EventType             `json:"type"`
			Data AttemptSubmittedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventAttemptSubmitted, decoded.Type)
		assert.Equal(t, 7.5, decoded.Data.Score)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	require.NoError(t, publisher.Publish(ctx, NewExamPublishedEvent(ExamPublishedEvent{ExamID: 1})))
	require.NoError(t, publisher.Publish(ctx, NewAttemptStartedEvent(AttemptStartedEvent{AttemptID: "x"})))

	assert.Len(t, publisher.GetPublishedEvents(), 2)
	assert.Len(t, publisher.EventsOfType(EventExamPublished), 1)

	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestNewEventEnvelope(t *testing.T) {
	a := NewExamArchivedEvent(ExamArchivedEvent{ExamID: 1})
	b := NewExamArchivedEvent(ExamArchivedEvent{ExamID: 1})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, EventExamArchived, a.Type)
	assert.Equal(t, eventVersion, a.Version)
	assert.False(t, a.Timestamp.IsZero())
}
