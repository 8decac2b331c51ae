package tokens

import (
	"strings"
	"unicode/utf8"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
	"github.com/weaviate/tiktoken-go"
)

// Counter measures the token length of a message content.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Estimate is a rough count of one token per four characters, used when an encoder fails.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// DefaultEncoding returns the encoding used for a model the codec library doesn't know about.
func DefaultEncoding(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5-turbo"),
		strings.HasPrefix(model, "text-embedding-ada-002"):
		return string(tokenizer.Cl100kBase)
	case strings.HasPrefix(model, "text-davinci-002"),
		strings.HasPrefix(model, "text-davinci-003"),
		strings.HasPrefix(model, "code-"):
		return string(tokenizer.P50kBase)
	default:
		return string(tokenizer.R50kBase)
	}
}

// CodecCounter counts tokens with a github.com/tiktoken-go/tokenizer codec.
type CodecCounter struct {
	codec tokenizer.Codec
}

var _ Counter = (*CodecCounter)(nil)

// GetCodec resolves a codec by explicit encoding, by model, or by the model's default encoding.
func GetCodec(model, encoding string) (tokenizer.Codec, error) {
	if encoding != "" {
		c, err := tokenizer.Get(tokenizer.Encoding(encoding))
		if err != nil {
			return nil, errors.Wrapf(err, "could not get encoding %s", encoding)
		}
		return c, nil
	}

	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return c, nil
		}
		log.Debug().Str("model", model).Err(err).Msg("model not known to tokenizer, using default encoding")
	}

	enc := DefaultEncoding(model)
	c, err := tokenizer.Get(tokenizer.Encoding(enc))
	if err != nil {
		return nil, errors.Wrapf(err, "could not get encoding %s", enc)
	}
	return c, nil
}

func NewCodecCounter(model, encoding string) (*CodecCounter, error) {
	c, err := GetCodec(model, encoding)
	if err != nil {
		return nil, err
	}
	return &CodecCounter{codec: c}, nil
}

func (c *CodecCounter) Name() string {
	return c.codec.GetName()
}

func (c *CodecCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		log.Warn().Err(err).Str("codec", c.codec.GetName()).Msg("could not encode text, estimating token count")
		return Estimate(text)
	}
	return len(ids)
}

func (c *CodecCounter) Encode(text string) ([]uint, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode text")
	}
	return ids, nil
}

func (c *CodecCounter) Decode(ids []uint) (string, error) {
	s, err := c.codec.Decode(ids)
	if err != nil {
		return "", errors.Wrap(err, "could not decode tokens")
	}
	return s, nil
}

// TiktokenCounter counts tokens with github.com/weaviate/tiktoken-go.
type TiktokenCounter struct {
	encoding string
	tk       *tiktoken.Tiktoken
}

var _ Counter = (*TiktokenCounter)(nil)

func NewTiktokenCounter(model, encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		tk, err := tiktoken.EncodingForModel(model)
		if err == nil {
			return &TiktokenCounter{encoding: model, tk: tk}, nil
		}
		encoding = DefaultEncoding(model)
	}

	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get encoding %s", encoding)
	}
	return &TiktokenCounter{encoding: encoding, tk: tk}, nil
}

func (t *TiktokenCounter) Name() string {
	return t.encoding
}

func (t *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.tk.Encode(text, nil, nil))
}

// NewCounter builds the counter configured by the tokenizer settings for the given model.
func NewCounter(s *settings.TokenizerSettings, model string) (Counter, error) {
	switch s.GetBackend() {
	case settings.TokenizerBackendCodec:
		return NewCodecCounter(model, s.GetEncoding())
	case settings.TokenizerBackendTiktoken:
		return NewTiktokenCounter(model, s.GetEncoding())
	default:
		return nil, errors.Errorf("unknown tokenizer backend %q", s.GetBackend())
	}
}
