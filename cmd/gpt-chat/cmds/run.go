package cmds

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/persona/pkg/conversation"
	"github.com/go-go-golems/persona/pkg/events"
	"github.com/go-go-golems/persona/pkg/helpers"
	"github.com/go-go-golems/persona/pkg/personas"
	"github.com/go-go-golems/persona/pkg/steps/ai/openai"
	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	"github.com/go-go-golems/persona/pkg/tokens"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	ChatTopic         = "chat"
	DefaultMaxRetries = 5
)

// AddChatFlags registers the flags of the chat command. Every flag is read
// back through viper, so it can also come from the environment or the config file.
func AddChatFlags(fs *pflag.FlagSet) {
	fs.StringP("key", "k", "", "API key for OpenAI (default: $OPENAI_API_KEY)")
	fs.StringP("persona", "p", "", "Path of a persona file (JSON, YAML or text)")
	fs.Bool("template", false, "Render the persona file as a template")
	fs.StringArray("template-var", []string{}, "Template variable as key=value, implies --template")

	fs.String("model", settings.DefaultEngine, "Model to use")
	fs.String("api-type", "openai", "Completion backend (openai, go-openai)")
	fs.String("base-url", "", "Base URL of the API (default https://api.openai.com)")
	fs.String("organization", "", "OpenAI organization")
	fs.Float64("temperature", 1, "Sampling temperature")
	fs.Float64("top-p", 1, "Nucleus sampling probability mass")
	fs.Int("max-response-tokens", 0, "Maximum number of tokens in a reply")
	fs.Int("max-context-tokens", conversation.DefaultMaxContextTokenCount, "Token budget of the conversation, 0 disables condensing")
	fs.Int("max-retries", DefaultMaxRetries, "Retries on rate limits and server errors, negative for no limit")
	fs.Int("timeout", settings.DefaultTimeoutSeconds, "Total request timeout in seconds, streamed replies included, 0 disables")
	fs.String("tokenizer-backend", "tokenizer", "Token counter (tokenizer, tiktoken)")
	fs.String("tokenizer-encoding", "", "Token encoding (default: derived from the model)")

	fs.Bool("print-raw-events", false, "Print the chat events as JSON to stderr")
}

// LoadSettings builds the step settings from viper, asking for the API key if none is configured.
func LoadSettings(v *viper.Viper, in io.Reader, out io.Writer) (*settings.StepSettings, error) {
	ss := settings.NewStepSettings()
	ss.Retry.MaxRetries = helpers.Ptr(DefaultMaxRetries)

	if err := BindAPIKey(v); err != nil {
		return nil, err
	}
	if err := ss.UpdateFromViper(v); err != nil {
		return nil, err
	}
	if v.IsSet("key") {
		ss.Chat.SetOpenAIAPIKey(strings.TrimSpace(v.GetString("key")))
	}

	if ss.Chat.OpenAIAPIKey() == "" {
		key, err := AskAPIKey(in, out)
		if err != nil {
			return nil, err
		}
		ss.Chat.SetOpenAIAPIKey(key)
	}

	return ss, nil
}

// ParseTemplateVars splits key=value pairs.
func ParseTemplateVars(vars []string) (map[string]interface{}, error) {
	ret := map[string]interface{}{}
	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid template variable %q, expected key=value", kv)
		}
		ret[k] = v
	}
	return ret, nil
}

// LoadPersona builds the conversation from the persona file configured in
// v, or from the default persona.
func LoadPersona(v *viper.Viper, ss *settings.StepSettings) (*conversation.Persona, error) {
	counter, err := tokens.NewCounter(ss.Tokenizer, ss.Chat.GetEngine())
	if err != nil {
		log.Warn().Err(err).Msg("Could not create token counter, estimating token counts")
		counter = tokens.CounterFunc(tokens.Estimate)
	}

	snapshot := personas.DefaultPersona()
	if path := v.GetString("persona"); path != "" {
		vars, err := ParseTemplateVars(v.GetStringSlice("template-var"))
		if err != nil {
			return nil, err
		}
		snapshot, err = personas.Load(path, &personas.LoadOptions{
			Template:  v.GetBool("template") || len(vars) > 0,
			Variables: vars,
		})
		if err != nil {
			return nil, err
		}
	}

	maxTokens := conversation.DefaultMaxContextTokenCount
	if ss.Chat.MaxContextTokens != nil {
		maxTokens = *ss.Chat.MaxContextTokens
	}

	return conversation.NewPersonaFromSnapshot(
		counter,
		snapshot,
		conversation.WithMaxContextTokenCount(maxTokens),
	), nil
}

// RunChat runs the interactive chat on stdin and stdout until the user quits.
func RunChat(ctx context.Context, v *viper.Viper, stdin *os.File, stdout io.Writer) error {
	ss, err := LoadSettings(v, stdin, stdout)
	if err != nil {
		return err
	}

	completer, err := openai.NewCompleter(ss)
	if err != nil {
		return err
	}

	persona, err := LoadPersona(v, ss)
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(v.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		if err := router.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event router")
		}
	}()

	sessionID := helpers.NewSessionID()
	manager := events.NewPublisherManager()
	manager.AddPublisher(ChatTopic, helpers.SessionPublisherDecorator{
		Publisher: router.Publisher,
		SessionID: sessionID,
	})
	router.AddHandler("printer", ChatTopic, events.StepPrinterFunc(AIPrompt, stdout))
	if v.GetBool("print-raw-events") {
		router.AddHandler("raw-events", ChatTopic, router.DumpRawEvents(os.Stderr))
	}

	params := ss.ChatParams()
	metadata := events.EventMetadata{
		LLMInferenceData: events.LLMInferenceData{
			Model:       params.Model,
			Temperature: params.Temperature,
			TopP:        params.TopP,
			MaxTokens:   params.MaxTokens,
		},
		SessionID: sessionID,
		Extra:     ss.GetMetadata(),
	}

	log.Debug().
		Str("session_id", sessionID).
		Fields(ss.GetMetadata()).
		Int("persona_tokens", persona.PersonaTokenCount()).
		Msg("Starting chat")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()

		select {
		case <-router.Running():
		case <-ctx.Done():
			return nil
		}

		chat := NewChat(persona, completer, manager, stdin, stdout,
			WithChatParams(params),
			WithMetadata(metadata),
			WithShowPrompt(isatty.IsTerminal(stdin.Fd()) || isatty.IsCygwinTerminal(stdin.Fd())),
		)
		return chat.Run(ctx)
	})

	return eg.Wait()
}
