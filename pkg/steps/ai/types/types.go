package types

import (
	"context"
	"encoding/json"
)

type ApiType string

const (
	// ApiTypeOpenAI uses the native net/http chat completion client
	ApiTypeOpenAI ApiType = "openai"
	// ApiTypeGoOpenAI routes requests through github.com/sashabaranov/go-openai
	ApiTypeGoOpenAI ApiType = "go-openai"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
//
// A Message with an empty Role is a bare text: operations accepting messages
// substitute their default role for it.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Content string `json:"content" yaml:"content"`
}

// Text creates a bare text message.
func Text(content string) Message {
	return Message{Content: content}
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// WithDefaultRole returns a copy of m with role filled in if m is a bare text.
func (m Message) WithDefaultRole(role Role) Message {
	if m.Role == "" {
		m.Role = role
	}
	return m
}

// WithDefaultRole applies Message.WithDefaultRole to every message, returning a new slice.
func WithDefaultRole(role Role, msgs ...Message) []Message {
	ret := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		ret = append(ret, m.WithDefaultRole(role))
	}
	return ret
}

// FinishReason is empty while a choice is still streaming and serializes as null.
type FinishReason string

const (
	FinishReasonNone   FinishReason = ""
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonFinish FinishReason = "finish"
)

func (f FinishReason) MarshalJSON() ([]byte, error) {
	if f == FinishReasonNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

func (f *FinishReason) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = FinishReasonNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = FinishReason(s)
	return nil
}

type Choice struct {
	Index        int          `json:"index" yaml:"index"`
	Message      Message      `json:"message" yaml:"message"`
	FinishReason FinishReason `json:"finish_reason" yaml:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// Response is a completed chat completion, either received in one piece or
// reassembled from a stream.
type Response struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Object  string   `json:"object,omitempty" yaml:"object,omitempty"`
	Created int64    `json:"created,omitempty" yaml:"created,omitempty"`
	Model   string   `json:"model,omitempty" yaml:"model,omitempty"`
	Choices []Choice `json:"choices" yaml:"choices"`
	Usage   *Usage   `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// Choice returns the choice with the given index.
func (r *Response) Choice(index int) (Choice, bool) {
	if r == nil {
		return Choice{}, false
	}
	for _, c := range r.Choices {
		if c.Index == index {
			return c, true
		}
	}
	return Choice{}, false
}

// Delta is an incremental fragment of a streamed choice.
type Delta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// DeltaSink receives every streamed choice delta, synchronously and in arrival order.
type DeltaSink func(delta Delta, index int)

// ChatParams are the optional request parameters forwarded to the completion API.
// Pointer fields distinguish unset values from explicit zeros.
type ChatParams struct {
	Model            string             `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature      *float64           `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	N                *int               `json:"n,omitempty" yaml:"n,omitempty"`
	Stop             []string           `json:"stop,omitempty" yaml:"stop,omitempty"`
	MaxTokens        *int               `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty" yaml:"logit_bias,omitempty"`
	User             string             `json:"user,omitempty" yaml:"user,omitempty"`
}

// Completer sends a message list to a chat completion backend.
// A nil sink requests a buffered completion, a non-nil sink a streamed one.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params *ChatParams, sink DeltaSink) (*Response, error)
}
