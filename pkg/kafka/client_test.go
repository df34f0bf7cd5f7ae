package kafka

import (
	"context"
	"errors"
	"testing"

	"tikitaka-go/internal/config"
	"tikitaka-go/internal/model"
	"tikitaka-go/pkg/tasks"
)

type countingProcessor struct {
	calls   int
	failFor int
	last    tasks.ChatEvent
}

func (p *countingProcessor) Process(ctx context.Context, event tasks.ChatEvent) error {
	p.calls++
	p.last = event
	if p.calls <= p.failFor {
		return errors.New("es unavailable")
	}
	return nil
}

func TestHandleMessageDecodesAndProcesses(t *testing.T) {
	p := &countingProcessor{}
	handleMessage(context.Background(), []byte(`{"type":"turn","turn":{"message_id":7,"session_id":"s1","content":"안녕"}}`), 1, p)
	if p.calls != 1 {
		t.Fatalf("expected one call, got %d", p.calls)
	}
	if p.last.Type != tasks.EventTurn || p.last.Turn == nil || p.last.Turn.MessageID != 7 {
		t.Fatalf("unexpected event %+v", p.last)
	}
}

func TestHandleMessageRetriesThenGivesUp(t *testing.T) {
	p := &countingProcessor{failFor: 10}
	handleMessage(context.Background(), []byte(`{"type":"feedback","feedback":{"session_id":"s1","rating":5}}`), 2, p)
	if p.calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, p.calls)
	}
}

func TestHandleMessageSkipsMalformed(t *testing.T) {
	p := &countingProcessor{}
	handleMessage(context.Background(), []byte(`not json`), 3, p)
	if p.calls != 0 {
		t.Fatalf("malformed message must not be processed")
	}
}

func TestNewPublisherWithoutBrokersIsNop(t *testing.T) {
	pub := NewPublisher(config.KafkaConfig{Topic: "t"})
	if _, ok := pub.(NopPublisher); !ok {
		t.Fatalf("expected NopPublisher, got %T", pub)
	}
	err := pub.Publish(context.Background(), tasks.ChatEvent{Type: tasks.EventTurn, Turn: &model.TranscriptDoc{SessionID: "s1"}})
	if err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestEventKey(t *testing.T) {
	e := tasks.ChatEvent{Type: tasks.EventFeedback, Feedback: &model.Feedback{SessionID: "s9"}}
	if e.Key() != "s9" {
		t.Fatalf("unexpected key %q", e.Key())
	}
}
