package events

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	SequenceNumberMetadataKey = "sequence_number"
	EventTypeMetadataKey      = "event_type"
)

type publishTarget struct {
	topic     string
	publisher message.Publisher
}

// PublisherManager fans chat events out to watermill publishers, in the
// order the publishers were added. Messages are numbered in Publish order.
type PublisherManager struct {
	mu       sync.Mutex
	targets  []publishTarget
	sequence uint64
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{}
}

func (m *PublisherManager) AddPublisher(topic string, p message.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, publishTarget{topic: topic, publisher: p})
}

// Publish sends each publisher its own copy of the event. Every publisher
// is tried; the first failure is returned.
func (m *PublisherManager) Publish(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set(SequenceNumberMetadataKey, strconv.FormatUint(m.sequence, 10))
	msg.Metadata.Set(EventTypeMetadataKey, string(e.Type()))
	m.sequence++

	var firstErr error
	for _, t := range m.targets {
		if err := t.publisher.Publish(t.topic, msg.Copy()); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "could not publish %s event to %s", e.Type(), t.topic)
		}
	}

	return firstErr
}

// PublishBlind publishes e and only logs failures. The chat loop uses it
// so that a broken output never aborts a turn.
func (m *PublisherManager) PublishBlind(e Event) {
	if err := m.Publish(e); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}
}
