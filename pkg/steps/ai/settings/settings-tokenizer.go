package settings

import "github.com/huandu/go-clone"

type TokenizerBackend string

const (
	// TokenizerBackendCodec counts with github.com/tiktoken-go/tokenizer
	TokenizerBackendCodec TokenizerBackend = "tokenizer"
	// TokenizerBackendTiktoken counts with github.com/weaviate/tiktoken-go
	TokenizerBackendTiktoken TokenizerBackend = "tiktoken"
)

type TokenizerSettings struct {
	Backend *TokenizerBackend `yaml:"backend,omitempty" mapstructure:"tokenizer-backend"`
	// Encoding overrides the encoding derived from the chat engine
	Encoding *string `yaml:"encoding,omitempty" mapstructure:"tokenizer-encoding"`
}

func NewTokenizerSettings() *TokenizerSettings {
	backend := TokenizerBackendCodec
	return &TokenizerSettings{Backend: &backend}
}

func (t *TokenizerSettings) Clone() *TokenizerSettings {
	return clone.Clone(t).(*TokenizerSettings)
}

func (t *TokenizerSettings) GetBackend() TokenizerBackend {
	if t == nil || t.Backend == nil || *t.Backend == "" {
		return TokenizerBackendCodec
	}
	return *t.Backend
}

func (t *TokenizerSettings) GetEncoding() string {
	if t == nil || t.Encoding == nil {
		return ""
	}
	return *t.Encoding
}
