package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	settings_openai "github.com/go-go-golems/persona/pkg/steps/ai/settings/openai"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel        = settings.DefaultEngine
	DefaultBaseURL      = settings_openai.DefaultBaseURL
	chatCompletionsPath = "/v1/chat/completions"
)

// Client talks to the chat completions endpoint over net/http.
// It holds no conversation state and is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	BaseURL      string
	Organization string
	UserAgent    string
}

var _ types.Completer = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.BaseURL = baseURL
	}
}

func WithOrganization(organization string) ClientOption {
	return func(c *Client) {
		c.Organization = organization
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.UserAgent = userAgent
	}
}

// NewClient initializes a client. Without WithHTTPClient, requests go through
// a RetryTransport with default settings.
func NewClient(apiKey string, options ...ClientOption) *Client {
	ret := &Client{
		apiKey:  apiKey,
		BaseURL: DefaultBaseURL,
	}
	for _, o := range options {
		o(ret)
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Transport: NewRetryTransport(nil, nil)}
	}
	return ret
}

type chatCompletionRequest struct {
	*types.ChatParams
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// streamChunk is the payload of one streamed event.
type streamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int                `json:"index"`
		Delta        types.Delta        `json:"delta"`
		FinishReason types.FinishReason `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) setHeaders(req *http.Request, stream bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.Organization)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

// Complete sends messages to the chat completions endpoint.
//
// With a nil sink the response is read in one piece. Otherwise the response
// is streamed: sink is called once per received choice delta, in arrival
// order, and the returned Response holds the reassembled choices.
func (c *Client) Complete(
	ctx context.Context,
	messages []types.Message,
	params *types.ChatParams,
	sink types.DeltaSink,
) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	stream := sink != nil
	resp, err := c.send(ctx, messages, params, stream)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if !stream {
		var ret types.Response
		if err := json.NewDecoder(resp.Body).Decode(&ret); err != nil {
			return nil, errors.Wrap(err, "could not decode chat completion")
		}
		return &ret, nil
	}

	return c.readStream(resp.Body, sink)
}

func (c *Client) send(ctx context.Context, messages []types.Message, params *types.ChatParams, stream bool) (*http.Response, error) {
	p := types.ChatParams{}
	if params != nil {
		p = *params
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}

	b, err := json.Marshal(chatCompletionRequest{
		ChatParams: &p,
		Messages:   messages,
		Stream:     stream,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal chat completion request")
	}

	url := strings.TrimRight(c.BaseURL, "/") + chatCompletionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "could not create request")
	}
	c.setHeaders(req, stream)

	log.Debug().
		Str("model", p.Model).
		Int("messages", len(messages)).
		Bool("stream", stream).
		Msg("sending chat completion request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		return nil, parseStatusError(resp)
	}

	return resp, nil
}

func (c *Client) readStream(body io.Reader, sink types.DeltaSink) (*types.Response, error) {
	acc := newChoiceAccumulator()
	ret := &types.Response{Object: "chat.completion"}
	decoder := NewDecoder(body)
	eventCount := 0

	for {
		ev, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		eventCount++

		var chunk streamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			log.Debug().Object("event", ev).Err(err).Msg("skipping malformed stream event")
			continue
		}

		if ret.ID == "" {
			ret.ID = chunk.ID
		}
		if ret.Model == "" {
			ret.Model = chunk.Model
		}
		if ret.Created == 0 {
			ret.Created = chunk.Created
		}

		for _, choice := range chunk.Choices {
			acc.Add(choice.Index, choice.Delta, choice.FinishReason)
			sink(choice.Delta, choice.Index)
		}
	}

	log.Debug().Int("events", eventCount).Msg("chat completion stream finished")
	ret.Choices = acc.Choices()
	return ret, nil
}
