package settings

import (
	"io"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings/openai"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type factoryConfigFileWrapper struct {
	Factories *StepSettings
}

type StepSettings struct {
	Chat      *ChatSettings      `yaml:"chat,omitempty"`
	OpenAI    *openai.Settings   `yaml:"openai,omitempty"`
	Client    *ClientSettings    `yaml:"client,omitempty"`
	Retry     *RetrySettings     `yaml:"retry,omitempty"`
	Tokenizer *TokenizerSettings `yaml:"tokenizer,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		Chat:      NewChatSettings(),
		OpenAI:    openai.NewSettings(),
		Client:    NewClientSettings(),
		Retry:     NewRetrySettings(),
		Tokenizer: NewTokenizerSettings(),
	}
}

// NewStepSettingsFromYAML reads settings nested under a top-level `factories` key,
// starting from the defaults of NewStepSettings.
func NewStepSettingsFromYAML(s io.Reader) (*StepSettings, error) {
	settings_ := factoryConfigFileWrapper{
		Factories: NewStepSettings(),
	}
	if err := yaml.NewDecoder(s).Decode(&settings_); err != nil {
		return nil, errors.Wrap(err, "could not decode step settings")
	}

	return settings_.Factories, nil
}

// ChatParams builds the request parameters for the completion client.
func (ss *StepSettings) ChatParams() *types.ChatParams {
	ret := &types.ChatParams{}
	if ss.Chat != nil {
		ret.Model = ss.Chat.GetEngine()
		ret.Temperature = ss.Chat.Temperature
		ret.TopP = ss.Chat.TopP
		ret.MaxTokens = ss.Chat.MaxResponseTokens
		if len(ss.Chat.Stop) > 0 {
			ret.Stop = append([]string{}, ss.Chat.Stop...)
		}
		if ss.Chat.User != nil {
			ret.User = *ss.Chat.User
		}
	}
	if ss.OpenAI != nil {
		ret.N = ss.OpenAI.N
		ret.PresencePenalty = ss.OpenAI.PresencePenalty
		ret.FrequencyPenalty = ss.OpenAI.FrequencyPenalty
		if len(ss.OpenAI.LogitBias) > 0 {
			ret.LogitBias = map[string]float64{}
			for k, v := range ss.OpenAI.LogitBias {
				ret.LogitBias[k] = v
			}
		}
	}
	return ret
}

func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		metadata["ai-engine"] = ss.Chat.GetEngine()
		metadata["ai-api-type"] = string(ss.Chat.GetApiType())
		if ss.Chat.MaxResponseTokens != nil {
			metadata["ai-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["ai-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["ai-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["ai-stop"] = ss.Chat.Stop
		}
		if ss.Chat.MaxContextTokens != nil {
			metadata["ai-max-context-tokens"] = *ss.Chat.MaxContextTokens
		}
		metadata["ai-stream"] = ss.Chat.Stream
	}

	if ss.OpenAI != nil {
		if ss.OpenAI.N != nil && *ss.OpenAI.N != 1 {
			metadata["openai-n"] = *ss.OpenAI.N
		}
		if ss.OpenAI.PresencePenalty != nil && *ss.OpenAI.PresencePenalty != 0 {
			metadata["openai-presence-penalty"] = *ss.OpenAI.PresencePenalty
		}
		if ss.OpenAI.FrequencyPenalty != nil && *ss.OpenAI.FrequencyPenalty != 0 {
			metadata["openai-frequency-penalty"] = *ss.OpenAI.FrequencyPenalty
		}
		if len(ss.OpenAI.LogitBias) > 0 {
			metadata["openai-logit-bias"] = ss.OpenAI.LogitBias
		}
		if ss.OpenAI.BaseURL != nil {
			metadata["openai-base-url"] = *ss.OpenAI.BaseURL
		}
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.Organization != nil && *ss.Client.Organization != "" {
			metadata["organization"] = *ss.Client.Organization
		}
		if ss.Client.UserAgent != nil {
			metadata["user-agent"] = *ss.Client.UserAgent
		}
	}

	if ss.Retry != nil {
		if ss.Retry.MaxRetries != nil {
			metadata["max-retries"] = *ss.Retry.MaxRetries
		}
		metadata["retry-initial-delay"] = ss.Retry.GetInitialDelay().String()
	}

	if ss.Tokenizer != nil {
		metadata["tokenizer-backend"] = string(ss.Tokenizer.GetBackend())
		if enc := ss.Tokenizer.GetEncoding(); enc != "" {
			metadata["tokenizer-encoding"] = enc
		}
	}

	return metadata
}

// UpdateFromViper overrides the settings with every key explicitly set in v,
// from flags, environment or config file.
//
// A negative max-retries means retrying without limit.
func (ss *StepSettings) UpdateFromViper(v *viper.Viper) error {
	if v.IsSet("model") {
		engine := v.GetString("model")
		ss.Chat.Engine = &engine
	}
	if v.IsSet("api-type") {
		apiType := types.ApiType(v.GetString("api-type"))
		switch apiType {
		case types.ApiTypeOpenAI, types.ApiTypeGoOpenAI:
		default:
			return errors.Errorf("unknown api type %q", apiType)
		}
		ss.Chat.ApiType = &apiType
	}
	if v.IsSet("temperature") {
		f := v.GetFloat64("temperature")
		ss.Chat.Temperature = &f
	}
	if v.IsSet("top-p") {
		f := v.GetFloat64("top-p")
		ss.Chat.TopP = &f
	}
	if v.IsSet("max-response-tokens") {
		i := v.GetInt("max-response-tokens")
		ss.Chat.MaxResponseTokens = &i
	}
	if v.IsSet("max-context-tokens") {
		i := v.GetInt("max-context-tokens")
		ss.Chat.MaxContextTokens = &i
	}
	if v.IsSet("stop") {
		ss.Chat.Stop = v.GetStringSlice("stop")
	}
	if key := v.GetString(OpenAIAPIKeySlug); key != "" {
		ss.Chat.SetOpenAIAPIKey(key)
	}
	if v.IsSet("base-url") {
		u := v.GetString("base-url")
		ss.OpenAI.BaseURL = &u
	}
	if v.IsSet("organization") {
		o := v.GetString("organization")
		ss.Client.Organization = &o
	}
	if v.IsSet("user-agent") {
		ua := v.GetString("user-agent")
		ss.Client.UserAgent = &ua
	}
	if v.IsSet("timeout") {
		ss.Client.SetTimeoutSeconds(v.GetInt("timeout"))
	}
	if v.IsSet("max-retries") {
		n := v.GetInt("max-retries")
		if n < 0 {
			ss.Retry.MaxRetries = nil
		} else {
			ss.Retry.MaxRetries = &n
		}
	}
	if v.IsSet("tokenizer-backend") {
		backend := TokenizerBackend(v.GetString("tokenizer-backend"))
		switch backend {
		case TokenizerBackendCodec, TokenizerBackendTiktoken:
		default:
			return errors.Errorf("unknown tokenizer backend %q", backend)
		}
		ss.Tokenizer.Backend = &backend
	}
	if v.IsSet("tokenizer-encoding") {
		enc := v.GetString("tokenizer-encoding")
		ss.Tokenizer.Encoding = &enc
	}

	return nil
}

func (s *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		Chat:      s.Chat.Clone(),
		OpenAI:    s.OpenAI.Clone(),
		Client:    s.Client.Clone(),
		Retry:     s.Retry.Clone(),
		Tokenizer: s.Tokenizer.Clone(),
	}
}
