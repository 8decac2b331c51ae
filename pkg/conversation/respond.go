package conversation

import (
	"context"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/rs/zerolog/log"
)

// Condenser shrinks the stored history of p and reports whether it changed anything.
type Condenser func(p *Persona) bool

// DefaultCondenser is Persona.Condense.
func DefaultCondenser(p *Persona) bool {
	return p.Condense()
}

type RespondOptions struct {
	// RequestParams are forwarded to the completer as is.
	RequestParams *types.ChatParams
	// AdditionalInstructions are sent after the instructions for this exchange only.
	AdditionalInstructions []types.Message
	// FreezeHistory leaves the history as it was before the exchange.
	FreezeHistory bool
	// Condenser replaces DefaultCondenser.
	Condenser Condenser
	// DeltaSink streams the content fragments of the first choice. nil requests a buffered completion.
	DeltaSink func(text string)
}

// Respond sends message along with the conversation to completer, appends
// the reply to the history and returns the reply text.
//
// The request always contains message in full, even if condensing later
// drops it from the stored history. If the completion fails, the history is
// restored to exactly what it was before the call.
func (p *Persona) Respond(
	ctx context.Context,
	completer types.Completer,
	message types.Message,
	options *RespondOptions,
) (string, error) {
	if options == nil {
		options = &RespondOptions{}
	}
	condense := options.Condenser
	if condense == nil {
		condense = DefaultCondenser
	}

	rollback := p.history.clone()
	p.PushMessage(message)

	messages := p.buildAPIMessages(
		types.WithDefaultRole(types.RoleSystem, options.AdditionalInstructions...),
		1,
	)

	if p.IsContextTooLong() {
		if condense(p) {
			log.Debug().
				Int("history", p.history.Len()).
				Int("tokens", p.TokenCount()).
				Msg("condensed history before request")
		}
	}

	var sink types.DeltaSink
	if options.DeltaSink != nil {
		sink = func(delta types.Delta, index int) {
			if index == 0 && delta.Content != "" {
				options.DeltaSink(delta.Content)
			}
		}
	}

	resp, err := completer.Complete(ctx, messages, options.RequestParams, sink)
	if err != nil {
		p.history = rollback
		return "", err
	}

	text, err := p.PushResponse(CompletionResponse(resp))
	if err != nil {
		p.history = rollback
		return "", err
	}

	if options.FreezeHistory {
		p.history = rollback
	}

	condense(p)

	return text, nil
}
