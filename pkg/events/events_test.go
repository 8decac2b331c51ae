package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages []*message.Message
}

func (c *capturePublisher) Publish(_ string, messages ...*message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, messages...)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) events(t *testing.T) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]Event, 0, len(c.messages))
	for _, m := range c.messages {
		e, err := NewEventFromJson(m.Payload)
		require.NoError(t, err)
		ret = append(ret, e)
	}
	return ret
}

func testMetadata() EventMetadata {
	return EventMetadata{
		LLMInferenceData: LLMInferenceData{Model: "gpt-3.5-turbo"},
		ID:               uuid.MustParse("7b0f3c8e-1d2a-4b5c-9e6f-0a1b2c3d4e5f"),
		SessionID:        "session",
	}
}

func TestNewEventFromJson(t *testing.T) {
	meta := testMetadata()
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, e Event)
	}{
		{
			name:  "start",
			event: NewStartEvent(meta),
			check: func(t *testing.T, e Event) {
				_, ok := e.(*EventPartialCompletionStart)
				assert.True(t, ok)
			},
		},
		{
			name:  "partial",
			event: NewPartialCompletionEvent(meta, "lo", "Hello"),
			check: func(t *testing.T, e Event) {
				p, ok := e.(*EventPartialCompletion)
				require.True(t, ok)
				assert.Equal(t, "lo", p.Delta)
				assert.Equal(t, "Hello", p.Completion)
			},
		},
		{
			name:  "final",
			event: NewFinalEvent(meta, "Hello"),
			check: func(t *testing.T, e Event) {
				f, ok := e.(*EventFinal)
				require.True(t, ok)
				assert.Equal(t, "Hello", f.Text)
			},
		},
		{
			name:  "error",
			event: NewErrorEvent(meta, errors.New("boom")),
			check: func(t *testing.T, e Event) {
				f, ok := e.(*EventError)
				require.True(t, ok)
				assert.Equal(t, "boom", f.ErrorString)
			},
		},
		{
			name:  "interrupt",
			event: NewInterruptEvent(meta, "Hel"),
			check: func(t *testing.T, e Event) {
				f, ok := e.(*EventInterrupt)
				require.True(t, ok)
				assert.Equal(t, "Hel", f.Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.event)
			require.NoError(t, err)

			e, err := NewEventFromJson(b)
			require.NoError(t, err)
			assert.Equal(t, tt.event.Type(), e.Type())
			assert.Equal(t, meta.ID, e.Metadata().ID)
			assert.Equal(t, "session", e.Metadata().SessionID)
			assert.Equal(t, "gpt-3.5-turbo", e.Metadata().Model)
			assert.Equal(t, b, e.Payload())
			tt.check(t, e)
		})
	}
}

func TestNewEventFromJsonInvalid(t *testing.T) {
	_, err := NewEventFromJson([]byte("not json"))
	assert.Error(t, err)

	e, err := NewEventFromJson([]byte(`{"type":"custom"}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("custom"), e.Type())
}

func TestTurnPublishesEvents(t *testing.T) {
	pub := &capturePublisher{}
	manager := NewPublisherManager()
	manager.AddPublisher("chat", pub)

	turn := NewTurn(manager, EventMetadata{SessionID: "s"})
	assert.NotEqual(t, uuid.Nil, turn.Metadata().ID)

	turn.Start()
	sink := turn.Sink()
	sink("He")
	sink("llo")
	turn.Final("Hello")

	evs := pub.events(t)
	require.Len(t, evs, 4)
	assert.Equal(t, EventTypeStart, evs[0].Type())
	assert.Equal(t, "Hello", evs[2].(*EventPartialCompletion).Completion)
	assert.Equal(t, "Hello", evs[3].(*EventFinal).Text)
	assert.Equal(t, "Hello", turn.Completion())

	for i, m := range pub.messages {
		assert.Equal(t, []string{"0", "1", "2", "3"}[i], m.Metadata.Get(SequenceNumberMetadataKey))
		assert.Equal(t, turn.Metadata().ID, evs[i].Metadata().ID)
	}
	assert.Equal(t, "final", pub.messages[3].Metadata.Get(EventTypeMetadataKey))
}

func TestTurnError(t *testing.T) {
	pub := &capturePublisher{}
	manager := NewPublisherManager()
	manager.AddPublisher("chat", pub)

	turn := NewTurn(manager, EventMetadata{})
	turn.Sink()("partial")
	turn.Error(errors.Wrap(context.Canceled, "request"))
	turn.Error(errors.New("boom"))

	evs := pub.events(t)
	require.Len(t, evs, 3)
	interrupt, ok := evs[1].(*EventInterrupt)
	require.True(t, ok)
	assert.Equal(t, "partial", interrupt.Text)
	e, ok := evs[2].(*EventError)
	require.True(t, ok)
	assert.Equal(t, "boom", e.ErrorString)
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("closed") }
func (failingPublisher) Close() error                               { return nil }

func TestPublisherManagerFanOut(t *testing.T) {
	a, b := &capturePublisher{}, &capturePublisher{}
	manager := NewPublisherManager()
	manager.AddPublisher("chat", a)
	manager.AddPublisher("chat", failingPublisher{})
	manager.AddPublisher("raw", b)

	err := manager.Publish(NewStartEvent(testMetadata()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	require.Len(t, a.messages, 1)
	require.Len(t, b.messages, 1)
	assert.NotSame(t, a.messages[0], b.messages[0])
	assert.Equal(t, a.messages[0].UUID, b.messages[0].UUID)
	assert.Equal(t, "start", b.messages[0].Metadata.Get(EventTypeMetadataKey))

	manager.PublishBlind(NewFinalEvent(testMetadata(), "done"))
	require.Len(t, a.messages, 2)
	assert.Equal(t, "1", a.messages[1].Metadata.Get(SequenceNumberMetadataKey))
}

func payloadMessage(t *testing.T, e Event) *message.Message {
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), b)
}

func TestStepPrinterFunc(t *testing.T) {
	meta := testMetadata()
	tests := []struct {
		name     string
		events   []Event
		expected string
	}{
		{
			name: "streamed",
			events: []Event{
				NewStartEvent(meta),
				NewPartialCompletionEvent(meta, "\n\n  Hel", "Hel"),
				NewPartialCompletionEvent(meta, "lo there", "Hello there"),
				NewFinalEvent(meta, "Hello there"),
			},
			expected: "AI> Hello there\n",
		},
		{
			name: "blank first delta",
			events: []Event{
				NewStartEvent(meta),
				NewPartialCompletionEvent(meta, "\n", "\n"),
				NewPartialCompletionEvent(meta, " Hi", "\n Hi"),
				NewFinalEvent(meta, "\n Hi"),
			},
			expected: "AI> Hi\n",
		},
		{
			name: "final without deltas",
			events: []Event{
				NewStartEvent(meta),
				NewFinalEvent(meta, " Hi"),
			},
			expected: "AI> Hi\n",
		},
		{
			name: "error after partial",
			events: []Event{
				NewPartialCompletionEvent(meta, "Hi", "Hi"),
				NewErrorEvent(meta, errors.New("boom")),
			},
			expected: "AI> Hi\n",
		},
		{
			name: "two turns",
			events: []Event{
				NewPartialCompletionEvent(meta, "A", "A"),
				NewInterruptEvent(meta, "A"),
				NewPartialCompletionEvent(meta, " B", " B"),
				NewFinalEvent(meta, " B"),
			},
			expected: "AI> A\nAI> B\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			handler := StepPrinterFunc("AI> ", buf)
			for _, e := range tt.events {
				require.NoError(t, handler(payloadMessage(t, e)))
			}
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestEventRouterDelivers(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	router.AddHandler("printer", "chat", StepPrinterFunc("AI> ", buf))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- router.Run(ctx)
	}()
	<-router.Running()

	manager := NewPublisherManager()
	manager.AddPublisher("chat", router.Publisher)

	turn := NewTurn(manager, EventMetadata{})
	turn.Start()
	turn.Sink()("Hi")
	turn.Final("Hi")

	// publishing blocks until the handler acked
	assert.Equal(t, "AI> Hi\n", buf.String())

	cancel()
	require.NoError(t, router.Close())
	assert.NoError(t, <-done)
}

func TestDumpRawEvents(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	handler := router.DumpRawEvents(buf)
	require.NoError(t, handler(payloadMessage(t, NewFinalEvent(testMetadata(), "Hi"))))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "final", out["type"])
	assert.Equal(t, "Hi", out["text"])
	assert.Equal(t, "7b0f3c8e-1d2a-4b5c-9e6f-0a1b2c3d4e5f", out["id"])
	_, hasMeta := out["meta"]
	assert.False(t, hasMeta)
}
