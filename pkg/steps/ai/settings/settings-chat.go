package settings

import (
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
)

const (
	DefaultEngine = "gpt-3.5-turbo"
	// OpenAIAPIKeySlug is the key under which the openai credential is stored in ChatSettings.APIKeys
	OpenAIAPIKeySlug = "openai-api-key"
)

type ChatSettings struct {
	Engine            *string           `yaml:"engine,omitempty" mapstructure:"engine"`
	ApiType           *types.ApiType    `yaml:"api_type,omitempty" mapstructure:"api-type"`
	MaxResponseTokens *int              `yaml:"max_response_tokens,omitempty" mapstructure:"max-response-tokens"`
	TopP              *float64          `yaml:"top_p,omitempty" mapstructure:"top-p"`
	Temperature       *float64          `yaml:"temperature,omitempty" mapstructure:"temperature"`
	Stop              []string          `yaml:"stop,omitempty" mapstructure:"stop"`
	User              *string           `yaml:"user,omitempty" mapstructure:"user"`
	APIKeys           map[string]string `yaml:"api_keys,omitempty" mapstructure:"api-keys"`
	Stream            bool              `yaml:"stream,omitempty" mapstructure:"stream"`

	// MaxContextTokens bounds what the conversation sends per request. nil uses the conversation default.
	MaxContextTokens *int `yaml:"max_context_tokens,omitempty" mapstructure:"max-context-tokens"`
}

func NewChatSettings() *ChatSettings {
	engine := DefaultEngine
	apiType := types.ApiTypeOpenAI
	return &ChatSettings{
		Engine:  &engine,
		ApiType: &apiType,
		Stop:    []string{},
		APIKeys: map[string]string{},
		Stream:  true,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// GetEngine returns the configured model, falling back to DefaultEngine.
func (s *ChatSettings) GetEngine() string {
	if s == nil || s.Engine == nil || *s.Engine == "" {
		return DefaultEngine
	}
	return *s.Engine
}

func (s *ChatSettings) GetApiType() types.ApiType {
	if s == nil || s.ApiType == nil || *s.ApiType == "" {
		return types.ApiTypeOpenAI
	}
	return *s.ApiType
}

func (s *ChatSettings) OpenAIAPIKey() string {
	if s == nil || s.APIKeys == nil {
		return ""
	}
	return s.APIKeys[OpenAIAPIKeySlug]
}

func (s *ChatSettings) SetOpenAIAPIKey(key string) {
	if s.APIKeys == nil {
		s.APIKeys = map[string]string{}
	}
	s.APIKeys[OpenAIAPIKeySlug] = key
}
