package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stepSettingsYAML = `
factories:
  chat:
    engine: gpt-4
    api_type: go-openai
    temperature: 0.2
    max_context_tokens: 2000
    api_keys:
      openai-api-key: sk-test
  openai:
    n: 2
    base_url: http://localhost:8080
    logit_bias:
      "50256": -100
  client:
    timeout: 10
    organization: org-1
  retry:
    max_retries: 3
    initial_delay: 250ms
  tokenizer:
    backend: tiktoken
    encoding: cl100k_base
`

func TestNewStepSettingsFromYAML(t *testing.T) {
	s, err := NewStepSettingsFromYAML(strings.NewReader(stepSettingsYAML))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", s.Chat.GetEngine())
	assert.Equal(t, types.ApiTypeGoOpenAI, s.Chat.GetApiType())
	assert.Equal(t, "sk-test", s.Chat.OpenAIAPIKey())
	require.NotNil(t, s.Chat.MaxContextTokens)
	assert.Equal(t, 2000, *s.Chat.MaxContextTokens)
	assert.True(t, s.Chat.Stream)

	assert.Equal(t, "http://localhost:8080", s.OpenAI.GetBaseURL())
	assert.Equal(t, -100.0, s.OpenAI.LogitBias["50256"])

	require.NotNil(t, s.Client.Timeout)
	assert.Equal(t, 10*time.Second, *s.Client.Timeout)
	assert.Equal(t, "org-1", *s.Client.Organization)

	require.NotNil(t, s.Retry.MaxRetries)
	assert.Equal(t, 3, *s.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, s.Retry.GetInitialDelay())
	assert.Equal(t, DefaultRetryExponentialBase, s.Retry.GetExponentialBase())

	assert.Equal(t, TokenizerBackendTiktoken, s.Tokenizer.GetBackend())
	assert.Equal(t, "cl100k_base", s.Tokenizer.GetEncoding())
}

func TestStepSettingsDefaults(t *testing.T) {
	s := NewStepSettings()
	assert.Equal(t, DefaultEngine, s.Chat.GetEngine())
	assert.Equal(t, types.ApiTypeOpenAI, s.Chat.GetApiType())
	assert.Nil(t, s.Retry.MaxRetries)
	assert.Equal(t, 60*time.Second, *s.Client.Timeout)
	assert.Equal(t, TokenizerBackendCodec, s.Tokenizer.GetBackend())

	params := s.ChatParams()
	assert.Equal(t, DefaultEngine, params.Model)
	assert.Nil(t, params.Temperature)
	assert.Nil(t, params.LogitBias)
}

func TestClientTimeout(t *testing.T) {
	cs := NewClientSettings()
	assert.Equal(t, time.Duration(DefaultTimeoutSeconds)*time.Second, cs.NewHTTPClient(nil).Timeout)

	cs.SetTimeoutSeconds(0)
	assert.Zero(t, cs.NewHTTPClient(nil).Timeout)
}

func TestStepSettingsCloneIsDeep(t *testing.T) {
	s := NewStepSettings()
	s.Chat.SetOpenAIAPIKey("a")
	c := s.Clone()
	c.Chat.SetOpenAIAPIKey("b")
	*c.Chat.Engine = "gpt-4"

	assert.Equal(t, "a", s.Chat.OpenAIAPIKey())
	assert.Equal(t, DefaultEngine, s.Chat.GetEngine())
}

func TestUpdateFromViper(t *testing.T) {
	v := viper.New()
	v.Set("model", "gpt-4")
	v.Set("max-retries", 5)
	v.Set("openai-api-key", "sk-x")
	v.Set("timeout", 5)

	s := NewStepSettings()
	require.NoError(t, s.UpdateFromViper(v))
	assert.Equal(t, "gpt-4", s.Chat.GetEngine())
	require.NotNil(t, s.Retry.MaxRetries)
	assert.Equal(t, 5, *s.Retry.MaxRetries)
	assert.Equal(t, "sk-x", s.Chat.OpenAIAPIKey())
	assert.Equal(t, 5*time.Second, *s.Client.Timeout)

	v.Set("max-retries", -1)
	require.NoError(t, s.UpdateFromViper(v))
	assert.Nil(t, s.Retry.MaxRetries)

	v.Set("api-type", "claude")
	assert.Error(t, s.UpdateFromViper(v))
}

func TestRetryDelay(t *testing.T) {
	r := NewRetrySettings()
	assert.Equal(t, time.Second, r.Delay(1, 0))
	assert.Equal(t, 2*time.Second, r.Delay(2, 0))
	assert.Equal(t, 1500*time.Millisecond, r.Delay(1, 1))

	assert.True(t, r.Allows(1000))
	zero := 0
	r.MaxRetries = &zero
	assert.False(t, r.Allows(0))
	three := 3
	r.MaxRetries = &three
	assert.True(t, r.Allows(2))
	assert.False(t, r.Allows(3))
}
