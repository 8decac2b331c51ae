package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/persona/pkg/conversation"
	"github.com/go-go-golems/persona/pkg/events"
	"github.com/go-go-golems/persona/pkg/personas"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"
)

const (
	UserPrompt = "User> "
	AIPrompt   = "AI> "
)

// Chat is the interactive read-eval loop around a persona.
type Chat struct {
	persona   *conversation.Persona
	completer types.Completer
	params    *types.ChatParams
	manager   *events.PublisherManager
	metadata  events.EventMetadata

	in         *bufio.Reader
	out        io.Writer
	ui         *input.UI
	showPrompt bool

	// freezeNext keeps the next exchange out of the history
	freezeNext bool
}

type ChatOption func(*Chat)

func WithChatParams(params *types.ChatParams) ChatOption {
	return func(c *Chat) {
		c.params = params
	}
}

func WithMetadata(metadata events.EventMetadata) ChatOption {
	return func(c *Chat) {
		c.metadata = metadata
	}
}

func WithShowPrompt(show bool) ChatOption {
	return func(c *Chat) {
		c.showPrompt = show
	}
}

// NewChat reads lines from in and writes prompts and notices to out.
// Assistant replies are published through manager.
func NewChat(
	persona *conversation.Persona,
	completer types.Completer,
	manager *events.PublisherManager,
	in io.Reader,
	out io.Writer,
	options ...ChatOption,
) *Chat {
	// go-input reuses a *bufio.Reader as is, so prompts and the loop share one buffer
	reader := bufio.NewReader(in)
	ret := &Chat{
		persona:    persona,
		completer:  completer,
		manager:    manager,
		in:         reader,
		out:        out,
		ui:         &input.UI{Reader: reader, Writer: out},
		showPrompt: true,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (c *Chat) Persona() *conversation.Persona {
	return c.persona
}

// Run loops until the user enters an empty line, quits, the input ends or ctx is done.
// Failed commands and turns are logged and the loop continues.
func (c *Chat) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if line == "" {
			return nil
		}

		quit, err := c.HandleLine(ctx, line)
		if err != nil {
			log.Error().Err(err).Msg("chat")
		}
		if quit {
			return nil
		}
	}
}

func (c *Chat) readLine() (string, error) {
	if c.showPrompt {
		if _, err := fmt.Fprint(c.out, UserPrompt); err != nil {
			return "", err
		}
	}
	line, err := c.in.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}

// HandleLine runs a slash command or sends the line to the model.
// A leading `//` escapes the slash.
func (c *Chat) HandleLine(ctx context.Context, line string) (bool, error) {
	if strings.HasPrefix(line, "//") {
		return false, c.Send(ctx, line[1:])
	}
	if strings.HasPrefix(line, "/") {
		name, arg, _ := strings.Cut(line[1:], " ")
		return c.handleCommand(strings.ToLower(name), strings.TrimSpace(arg))
	}
	return false, c.Send(ctx, line)
}

func (c *Chat) handleCommand(name string, arg string) (bool, error) {
	switch name {
	case "exit", "quit":
		return true, nil

	case "persona":
		text, err := c.argOrAsk(arg, "Input a new persona:")
		if err != nil || text == "" {
			return false, err
		}
		c.persona.SetPersona(types.Text(text))
		c.println("The new persona has been assigned.")

	case "inst", "instruction", "instructions":
		text, err := c.argOrAsk(arg, "Input a new instruction:")
		if err != nil || text == "" {
			return false, err
		}
		c.persona.SetInstructions(types.Text(text))
		c.println("The new instruction has been assigned.")

	case "reset":
		c.persona.Clear()
		c.println("The persona has been reset.")

	case "clear", "restart":
		c.persona.ClearHistory()
		c.println("The history has been cleared.")

	case "save":
		path, err := c.argOrAsk(arg, "Path to save:")
		if err != nil || path == "" {
			return false, err
		}
		if err := personas.Save(path, c.persona.Snapshot()); err != nil {
			return false, err
		}
		c.println(fmt.Sprintf("Saved to %s.", path))

	case "count", "token", "tokens":
		u := c.persona.Usage()
		c.println(fmt.Sprintf("Available: %d (fixed %d + history %d of %d)", u.Available(), u.Fixed(), u.History, u.Max))
		c.println(fmt.Sprintf("Fixed: persona %d + instruction %d", u.Persona, u.Instructions))

	case "freeze":
		c.freezeNext = true
		c.println("The next reply will not be kept in the history.")

	default:
		c.println(fmt.Sprintf("Unknown command /%s", name))
	}

	return false, nil
}

func (c *Chat) argOrAsk(arg string, query string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	answer, err := c.ui.Ask(query, &input.Options{})
	if err != nil {
		return "", errors.Wrap(err, "could not read input")
	}
	return strings.TrimSpace(answer), nil
}

func (c *Chat) println(s string) {
	if _, err := fmt.Fprintln(c.out, s); err != nil {
		log.Warn().Err(err).Msg("could not write output")
	}
}

// Send runs one exchange, streaming the reply as events.
func (c *Chat) Send(ctx context.Context, text string) error {
	metadata := c.metadata
	metadata.TokenCount = c.persona.TokenCount()
	turn := events.NewTurn(c.manager, metadata)

	freeze := c.freezeNext
	c.freezeNext = false

	turn.Start()
	reply, err := c.persona.Respond(ctx, c.completer, types.Text(text), &conversation.RespondOptions{
		RequestParams: c.params,
		FreezeHistory: freeze,
		DeltaSink:     turn.Sink(),
	})
	if err != nil {
		turn.Error(err)
		return err
	}
	turn.Final(reply)

	log.Debug().
		Object("metadata", turn.Metadata()).
		Int("history", len(c.persona.History())).
		Int("tokens", c.persona.TokenCount()).
		Msg("turn done")

	return nil
}
