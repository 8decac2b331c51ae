package helpers

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WatermillLogger routes watermill's logs into zerolog. Watermill logs
// every router and subscriber lifecycle step at info, so those go out at
// infoLevel, debug unless configured otherwise.
type WatermillLogger struct {
	logger    zerolog.Logger
	infoLevel zerolog.Level
}

type WatermillLoggerOption func(*WatermillLogger)

func WithInfoLevel(level zerolog.Level) WatermillLoggerOption {
	return func(w *WatermillLogger) {
		w.infoLevel = level
	}
}

func NewWatermill(logger zerolog.Logger, options ...WatermillLoggerOption) *WatermillLogger {
	ret := &WatermillLogger{logger: logger, infoLevel: zerolog.DebugLevel}
	for _, o := range options {
		o(ret)
	}
	return ret
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)

func (w *WatermillLogger) log(level zerolog.Level, msg string, err error, fields watermill.LogFields) {
	e := w.logger.WithLevel(level)
	if err != nil {
		e = e.Err(err)
	}
	e.Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log(zerolog.ErrorLevel, msg, err, fields)
}

func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log(w.infoLevel, msg, nil, fields)
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log(zerolog.DebugLevel, msg, nil, fields)
}

func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log(zerolog.TraceLevel, msg, nil, fields)
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{
		logger:    w.logger.With().Fields(map[string]interface{}(fields)).Logger(),
		infoLevel: w.infoLevel,
	}
}

const SessionIDMessageMetadataKey = "session_id"

type sessionIDKeyType string

const sessionIDKey sessionIDKeyType = "session_id"

// NewSessionID returns a short random identifier for a chat session.
func NewSessionID() string {
	return shortuuid.New()
}

func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the session ID stored in ctx.
// If there is none, a generated ID with a "gen_" prefix is returned.
func SessionIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(sessionIDKey).(string)
	if ok {
		return v
	}

	log.Ctx(ctx).Debug().Msg("session ID not found in context")

	return "gen_" + NewSessionID()
}

// SessionPublisherDecorator tags every outgoing message with a session ID.
// Messages that already carry one are left untouched.
type SessionPublisherDecorator struct {
	message.Publisher
	SessionID string
}

func (c SessionPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for i := range messages {
		if messages[i].Metadata.Get(SessionIDMessageMetadataKey) != "" {
			continue
		}

		sessionID := c.SessionID
		if sessionID == "" {
			sessionID = SessionIDFromContext(messages[i].Context())
		}
		messages[i].Metadata.Set(SessionIDMessageMetadataKey, sessionID)
	}

	return c.Publisher.Publish(topic, messages...)
}
