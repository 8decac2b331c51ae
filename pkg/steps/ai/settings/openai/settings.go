package openai

import (
	"github.com/huandu/go-clone"
)

const DefaultBaseURL = "https://api.openai.com"

type Settings struct {
	// How many choice to create for each prompt
	N *int `yaml:"n,omitempty" mapstructure:"n"`
	// PresencePenalty to use
	PresencePenalty *float64 `yaml:"presence_penalty,omitempty" mapstructure:"presence-penalty"`
	// FrequencyPenalty to use
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty" mapstructure:"frequency-penalty"`
	// LogitBias maps token ids to a bias between -100 and 100
	LogitBias map[string]float64 `yaml:"logit_bias,omitempty" mapstructure:"logit-bias"`
	BaseURL   *string            `yaml:"base_url,omitempty" mapstructure:"base-url"`
}

func NewSettings() *Settings {
	return &Settings{
		LogitBias: map[string]float64{},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) GetBaseURL() string {
	if s == nil || s.BaseURL == nil || *s.BaseURL == "" {
		return DefaultBaseURL
	}
	return *s.BaseURL
}
