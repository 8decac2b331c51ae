package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Turn publishes the events of a single assistant reply.
type Turn struct {
	manager    *PublisherManager
	metadata   EventMetadata
	completion strings.Builder
}

// NewTurn assigns a fresh message ID if metadata does not carry one.
func NewTurn(manager *PublisherManager, metadata EventMetadata) *Turn {
	if metadata.ID == uuid.Nil {
		metadata.ID = uuid.New()
	}
	return &Turn{
		manager:  manager,
		metadata: metadata,
	}
}

func (t *Turn) Metadata() EventMetadata {
	return t.metadata
}

// Completion returns the text streamed so far.
func (t *Turn) Completion() string {
	return t.completion.String()
}

func (t *Turn) Start() {
	t.manager.PublishBlind(NewStartEvent(t.metadata))
}

// Sink returns a delta callback publishing a partial completion event per fragment.
func (t *Turn) Sink() func(string) {
	return func(delta string) {
		t.completion.WriteString(delta)
		t.manager.PublishBlind(NewPartialCompletionEvent(t.metadata, delta, t.completion.String()))
	}
}

func (t *Turn) Final(text string) {
	t.manager.PublishBlind(NewFinalEvent(t.metadata, text))
}

// Error publishes an interrupt event for cancelled turns and an error event otherwise.
func (t *Turn) Error(err error) {
	if errors.Is(err, context.Canceled) {
		t.manager.PublishBlind(NewInterruptEvent(t.metadata, t.completion.String()))
		return
	}
	t.manager.PublishBlind(NewErrorEvent(t.metadata, err))
}
