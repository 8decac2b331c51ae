package conversation

import (
	"encoding/json"
	"strings"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/go-go-golems/persona/pkg/tokens"
	"github.com/pkg/errors"
)

// DefaultMaxContextTokenCount leaves room for a short reply in a 4k context window.
const DefaultMaxContextTokenCount = 4096 - 128

var (
	ErrNoChoices           = errors.New("completion has no choice with index 0")
	ErrUnknownResponseKind = errors.New("unknown response kind")
)

// Persona is the state of one conversation. It is not safe for concurrent use.
type Persona struct {
	counter tokens.Counter

	persona      Sequence
	history      Sequence
	instructions Sequence

	// MaxContextTokenCount bounds what is sent per request. Values <= 0 disable trimming.
	MaxContextTokenCount int
}

type PersonaOption func(*Persona)

// WithPersona sets the persona messages. Bare texts become system messages.
func WithPersona(msgs ...types.Message) PersonaOption {
	return func(p *Persona) {
		p.SetPersona(msgs...)
	}
}

// WithInstructions sets the instruction messages. Bare texts become system messages.
func WithInstructions(msgs ...types.Message) PersonaOption {
	return func(p *Persona) {
		p.SetInstructions(msgs...)
	}
}

// WithHistory seeds the history. Bare texts become user messages.
func WithHistory(msgs ...types.Message) PersonaOption {
	return func(p *Persona) {
		p.PushMessage(msgs...)
	}
}

func WithSnapshot(s Snapshot) PersonaOption {
	return func(p *Persona) {
		p.Restore(s)
	}
}

func WithMaxContextTokenCount(n int) PersonaOption {
	return func(p *Persona) {
		p.MaxContextTokenCount = n
	}
}

// NewPersona creates an empty conversation counting tokens with counter.
// A nil counter falls back to tokens.Estimate.
func NewPersona(counter tokens.Counter, options ...PersonaOption) *Persona {
	if counter == nil {
		counter = tokens.CounterFunc(tokens.Estimate)
	}
	ret := &Persona{
		counter:              counter,
		MaxContextTokenCount: DefaultMaxContextTokenCount,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func NewPersonaFromSnapshot(counter tokens.Counter, s Snapshot, options ...PersonaOption) *Persona {
	return NewPersona(counter, append([]PersonaOption{WithSnapshot(s)}, options...)...)
}

func (p *Persona) Persona() []types.Message {
	return p.persona.Messages()
}

func (p *Persona) History() []types.Message {
	return p.history.Messages()
}

func (p *Persona) Instructions() []types.Message {
	return p.instructions.Messages()
}

func (p *Persona) PersonaTokenCount() int {
	return p.persona.TokenCount()
}

func (p *Persona) HistoryTokenCount() int {
	return p.history.TokenCount()
}

func (p *Persona) InstructionTokenCount() int {
	return p.instructions.TokenCount()
}

func (p *Persona) TokenCount() int {
	return p.persona.TokenCount() + p.history.TokenCount() + p.instructions.TokenCount()
}

func (p *Persona) IsContextTooLong() bool {
	return p.TokenCount() > p.MaxContextTokenCount
}

// CountTokens returns the token count of messages with the persona's counter.
func (p *Persona) CountTokens(msgs ...types.Message) int {
	ret := 0
	for _, m := range msgs {
		ret += p.counter.Count(m.Content)
	}
	return ret
}

func (p *Persona) SetPersona(msgs ...types.Message) {
	p.persona.set(p.counter, types.WithDefaultRole(types.RoleSystem, msgs...))
}

func (p *Persona) SetInstructions(msgs ...types.Message) {
	p.instructions.set(p.counter, types.WithDefaultRole(types.RoleSystem, msgs...))
}

// PushMessage appends to the history. Bare texts become user messages.
func (p *Persona) PushMessage(msgs ...types.Message) {
	p.history.append(p.counter, types.WithDefaultRole(types.RoleUser, msgs...))
}

type ResponseKind int

const (
	// ResponseKindMessages appends messages, bare texts becoming assistant messages.
	ResponseKindMessages ResponseKind = iota + 1
	// ResponseKindCompletion appends the message of choice 0 of a completion.
	ResponseKindCompletion
)

// ResponseValue is what PushResponse appends: either plain messages or a completion.
type ResponseValue struct {
	Kind       ResponseKind
	Messages   []types.Message
	Completion *types.Response
}

func MessagesResponse(msgs ...types.Message) ResponseValue {
	return ResponseValue{Kind: ResponseKindMessages, Messages: msgs}
}

func CompletionResponse(r *types.Response) ResponseValue {
	return ResponseValue{Kind: ResponseKindCompletion, Completion: r}
}

// PushResponse appends a response to the history and returns the content of
// the appended assistant messages, joined by newlines.
func (p *Persona) PushResponse(v ResponseValue) (string, error) {
	var msgs []types.Message

	switch v.Kind {
	case ResponseKindMessages:
		msgs = types.WithDefaultRole(types.RoleAssistant, v.Messages...)
	case ResponseKindCompletion:
		c, ok := v.Completion.Choice(0)
		if !ok {
			return "", ErrNoChoices
		}
		msgs = []types.Message{c.Message.WithDefaultRole(types.RoleAssistant)}
	default:
		return "", errors.Wrapf(ErrUnknownResponseKind, "%d", v.Kind)
	}

	p.history.append(p.counter, msgs)

	texts := []string{}
	for _, m := range msgs {
		if m.Role == types.RoleAssistant {
			texts = append(texts, m.Content)
		}
	}
	return strings.Join(texts, "\n"), nil
}

func (p *Persona) ClearPersona() {
	p.persona.clear()
}

func (p *Persona) ClearHistory() {
	p.history.clear()
}

func (p *Persona) ClearInstructions() {
	p.instructions.clear()
}

func (p *Persona) Clear() {
	p.ClearPersona()
	p.ClearHistory()
	p.ClearInstructions()
}

// GetAPIMessages returns the messages to send: the persona, the newest
// history that fits the budget, the instructions and extra, in that order.
// Bare texts in extra become system messages. The stored history is not modified.
func (p *Persona) GetAPIMessages(extra ...types.Message) []types.Message {
	return p.buildAPIMessages(types.WithDefaultRole(types.RoleSystem, extra...), 0)
}

// buildAPIMessages trims the history oldest-first but never drops the last
// keepLast history messages.
func (p *Persona) buildAPIMessages(extra []types.Message, keepLast int) []types.Message {
	total := p.TokenCount() + p.CountTokens(extra...)
	skip := 0
	for p.MaxContextTokenCount > 0 && total > p.MaxContextTokenCount && skip < p.history.Len()-keepLast {
		total -= p.history.counts[skip]
		skip++
	}

	ret := make([]types.Message, 0, p.persona.Len()+p.history.Len()-skip+p.instructions.Len()+len(extra))
	ret = append(ret, p.persona.messages...)
	ret = append(ret, p.history.messages[skip:]...)
	ret = append(ret, p.instructions.messages...)
	ret = append(ret, extra...)
	return ret
}

// Condense drops the oldest history messages until the stored conversation
// fits MaxContextTokenCount, and reports whether anything was dropped.
func (p *Persona) Condense() bool {
	dropped := false
	for p.MaxContextTokenCount > 0 && p.IsContextTooLong() && p.history.Len() > 0 {
		p.history.dropFront()
		dropped = true
	}
	return dropped
}

// TokenUsage summarizes how the context budget is spent.
type TokenUsage struct {
	Persona      int `json:"persona" yaml:"persona"`
	Instructions int `json:"instructions" yaml:"instructions"`
	History      int `json:"history" yaml:"history"`
	Max          int `json:"max" yaml:"max"`
}

func (u TokenUsage) Fixed() int {
	return u.Persona + u.Instructions
}

// Available is what remains for new history, negative when over budget.
func (u TokenUsage) Available() int {
	return u.Max - u.Fixed() - u.History
}

func (p *Persona) Usage() TokenUsage {
	return TokenUsage{
		Persona:      p.persona.TokenCount(),
		Instructions: p.instructions.TokenCount(),
		History:      p.history.TokenCount(),
		Max:          p.MaxContextTokenCount,
	}
}

// Snapshot is the serialized form of a Persona.
type Snapshot struct {
	Persona      []types.Message `json:"persona" yaml:"persona" jsonschema:"required"`
	History      []types.Message `json:"history" yaml:"history"`
	Instructions []types.Message `json:"instructions" yaml:"instructions"`
}

func (p *Persona) Snapshot() Snapshot {
	return Snapshot{
		Persona:      p.persona.Messages(),
		History:      p.history.Messages(),
		Instructions: p.instructions.Messages(),
	}
}

// Restore replaces all three sequences with the snapshot's.
func (p *Persona) Restore(s Snapshot) {
	p.SetPersona(s.Persona...)
	p.history.set(p.counter, types.WithDefaultRole(types.RoleUser, s.History...))
	p.SetInstructions(s.Instructions...)
}

func (p *Persona) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Snapshot())
}

func (p *Persona) UnmarshalJSON(b []byte) error {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if p.counter == nil {
		*p = *NewPersona(nil)
	}
	p.Restore(s)
	return nil
}
