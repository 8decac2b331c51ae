package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// GoOpenAIClient is a Completer backed by github.com/sashabaranov/go-openai.
type GoOpenAIClient struct {
	client *go_openai.Client
}

var _ types.Completer = (*GoOpenAIClient)(nil)

// NewGoOpenAIClient configures go-openai against baseURL (without the /v1 suffix).
func NewGoOpenAIClient(apiKey string, baseURL string, httpClient *http.Client, organization string) *GoOpenAIClient {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	config.OrgID = organization
	return &GoOpenAIClient{client: go_openai.NewClientWithConfig(config)}
}

func makeGoOpenAIRequest(messages []types.Message, params *types.ChatParams, stream bool) go_openai.ChatCompletionRequest {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}

	req := go_openai.ChatCompletionRequest{
		Model:    DefaultModel,
		Messages: msgs,
		Stream:   stream,
	}
	if params == nil {
		return req
	}

	if params.Model != "" {
		req.Model = params.Model
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}
	if params.N != nil {
		req.N = *params.N
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.PresencePenalty != nil {
		req.PresencePenalty = float32(*params.PresencePenalty)
	}
	if params.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*params.FrequencyPenalty)
	}
	if len(params.LogitBias) > 0 {
		req.LogitBias = map[string]int{}
		for k, v := range params.LogitBias {
			req.LogitBias[k] = int(v)
		}
	}
	req.Stop = params.Stop
	req.User = params.User

	return req
}

// mapGoOpenAIError converts go-openai errors into APIError and TransportError.
func mapGoOpenAIError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		ret := &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Type:       apiErr.Type,
			Message:    apiErr.Message,
		}
		if apiErr.Code != nil {
			ret.Code = fmt.Sprint(apiErr.Code)
		}
		return ret
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Message:    reqErr.Error(),
		}
	}

	return &TransportError{Err: err}
}

func isMalformedChunk(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (g *GoOpenAIClient) Complete(
	ctx context.Context,
	messages []types.Message,
	params *types.ChatParams,
	sink types.DeltaSink,
) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	if sink == nil {
		resp, err := g.client.CreateChatCompletion(ctx, makeGoOpenAIRequest(messages, params, false))
		if err != nil {
			return nil, mapGoOpenAIError(err)
		}

		ret := &types.Response{
			ID:      resp.ID,
			Object:  resp.Object,
			Created: resp.Created,
			Model:   resp.Model,
			Usage: &types.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}
		for _, c := range resp.Choices {
			ret.Choices = append(ret.Choices, types.Choice{
				Index: c.Index,
				Message: types.Message{
					Role:    types.Role(c.Message.Role),
					Name:    c.Message.Name,
					Content: c.Message.Content,
				},
				FinishReason: types.FinishReason(c.FinishReason),
			})
		}
		return ret, nil
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, makeGoOpenAIRequest(messages, params, true))
	if err != nil {
		return nil, mapGoOpenAIError(err)
	}
	defer stream.Close()

	acc := newChoiceAccumulator()
	ret := &types.Response{Object: "chat.completion"}

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isMalformedChunk(err) {
				log.Debug().Err(err).Msg("skipping malformed stream event")
				continue
			}
			return nil, mapGoOpenAIError(err)
		}

		if ret.ID == "" {
			ret.ID = response.ID
		}
		if ret.Model == "" {
			ret.Model = response.Model
		}
		if ret.Created == 0 {
			ret.Created = response.Created
		}

		for _, choice := range response.Choices {
			delta := types.Delta{
				Role:    types.Role(choice.Delta.Role),
				Content: choice.Delta.Content,
			}
			acc.Add(choice.Index, delta, types.FinishReason(choice.FinishReason))
			sink(delta, choice.Index)
		}
	}

	ret.Choices = acc.Choices()
	return ret, nil
}
