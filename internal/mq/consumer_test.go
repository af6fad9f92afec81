package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Dirigent/internal/events"
)

// fakeAcknowledger записывает исход подтверждения доставки.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func delivery(t *testing.T, msg *Message) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	ack := &fakeAcknowledger{}
	return amqp.Delivery{Acknowledger: ack, Body: body}, ack
}

func TestTaskConsumer_Dispatch(t *testing.T) {
	taskID := uuid.New()

	command := func(id uuid.UUID) *Message {
		return &Message{
			ID:        uuid.New().String(),
			Type:      MessageTypeTaskPending,
			Payload:   TaskPendingPayload{TaskID: id},
			Timestamp: time.Now(),
		}
	}

	tests := []struct {
		name        string
		msg         *Message
		handlerErr  error
		wantCalled  bool
		wantAck     bool
		wantRequeue bool
	}{
		{
			name:       "valid command is acked",
			msg:        command(taskID),
			wantCalled: true,
			wantAck:    true,
		},
		{
			name:        "handler failure is requeued",
			msg:         command(taskID),
			handlerErr:  errors.New("store unavailable"),
			wantCalled:  true,
			wantRequeue: true,
		},
		{
			name: "foreign message type goes to dlq",
			msg: &Message{
				ID:        "evt",
				Type:      MessageTypeEvent,
				Payload:   events.New(events.KindTaskCompleted, nil),
				Timestamp: time.Now(),
			},
		},
		{
			name: "empty task id goes to dlq",
			msg:  command(uuid.Nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			var got uuid.UUID

			c := NewTaskConsumer(nil, testLogger(), func(_ context.Context, id uuid.UUID) error {
				called = true
				got = id
				return tt.handlerErr
			}, 1)

			raw, ack := delivery(t, tt.msg)
			c.dispatch(context.Background(), raw)

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, expected %v", called, tt.wantCalled)
			}
			if tt.wantCalled && got != taskID {
				t.Errorf("handler got task %s, expected %s", got, taskID)
			}
			if tt.wantAck {
				if !ack.acked || ack.nacked {
					t.Errorf("expected ack, got ack=%v nack=%v", ack.acked, ack.nacked)
				}
				return
			}
			if !ack.nacked || ack.acked {
				t.Fatalf("expected nack, got ack=%v nack=%v", ack.acked, ack.nacked)
			}
			if ack.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, expected %v", ack.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestTaskConsumer_UnreadableBody(t *testing.T) {
	c := NewTaskConsumer(nil, testLogger(), func(context.Context, uuid.UUID) error {
		t.Error("handler must not run for unreadable body")
		return nil
	}, 1)

	ack := &fakeAcknowledger{}
	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	if !ack.nacked || ack.requeue {
		t.Errorf("expected nack without requeue, got nack=%v requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestEventConsumer_Dispatch(t *testing.T) {
	var got events.Event
	called := 0

	c := NewEventConsumer(nil, testLogger(), "subscriber-q", func(_ context.Context, e events.Event) {
		called++
		got = e
	})

	// Валидное событие доходит до handler'а и подтверждается
	raw, ack := delivery(t, &Message{
		ID:        "1",
		Type:      MessageTypeEvent,
		Payload:   events.New(events.KindResourceLocked, map[string]any{"resource_id": "r1"}),
		Timestamp: time.Now(),
	})
	c.dispatch(context.Background(), raw)

	if called != 1 {
		t.Fatalf("expected 1 handler call, got %d", called)
	}
	if got.Kind != events.KindResourceLocked {
		t.Errorf("expected kind %s, got %s", events.KindResourceLocked, got.Kind)
	}
	if !ack.acked {
		t.Error("event delivery should be acked")
	}

	// Битое сообщение отбрасывается с ack, handler не вызывается
	bad := &fakeAcknowledger{}
	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: bad, Body: []byte("garbage")})

	if called != 1 {
		t.Error("handler must not run for unreadable event")
	}
	if !bad.acked || bad.nacked {
		t.Errorf("unreadable event should be acked and dropped, got ack=%v nack=%v", bad.acked, bad.nacked)
	}
}
