package openai

import (
	"net/http"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
)

// MakeHTTPClient builds the http client shared by both backends, with the
// retry transport wrapped around the configured (or default) transport.
func MakeHTTPClient(s *settings.StepSettings) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if s.Client.HTTPClient != nil && s.Client.HTTPClient.Transport != nil {
		base = s.Client.HTTPClient.Transport
	}
	return s.Client.NewHTTPClient(NewRetryTransport(base, s.Retry))
}

// NewCompleter creates the completion backend selected by the chat api type.
func NewCompleter(s *settings.StepSettings) (types.Completer, error) {
	apiKey := s.Chat.OpenAIAPIKey()
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	httpClient := MakeHTTPClient(s)
	organization := ""
	if s.Client.Organization != nil {
		organization = *s.Client.Organization
	}

	switch apiType := s.Chat.GetApiType(); apiType {
	case types.ApiTypeOpenAI:
		options := []ClientOption{
			WithHTTPClient(httpClient),
			WithBaseURL(s.OpenAI.GetBaseURL()),
			WithOrganization(organization),
		}
		if s.Client.UserAgent != nil {
			options = append(options, WithUserAgent(*s.Client.UserAgent))
		}
		return NewClient(apiKey, options...), nil
	case types.ApiTypeGoOpenAI:
		return NewGoOpenAIClient(apiKey, s.OpenAI.GetBaseURL(), httpClient, organization), nil
	default:
		return nil, errors.Wrapf(ErrUnknownApiType, "%s", apiType)
	}
}
