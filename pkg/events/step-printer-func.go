package events

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Printer writes a streamed assistant reply to a terminal.
// The prefix is written before the first non-blank delta, which gets its
// leading whitespace trimmed. Every turn ends with a newline.
type Printer struct {
	w       io.Writer
	prefix  string
	isFirst bool
}

var _ ChatEventHandler = &Printer{}

func NewPrinter(prefix string, w io.Writer) *Printer {
	return &Printer{
		w:       w,
		prefix:  prefix,
		isFirst: true,
	}
}

func (p *Printer) HandleStart(_ context.Context, _ *EventPartialCompletionStart) error {
	p.isFirst = true
	return nil
}

func (p *Printer) HandlePartialCompletion(_ context.Context, e *EventPartialCompletion) error {
	delta := e.Delta
	if p.isFirst {
		delta = strings.TrimLeft(delta, " \t\r\n")
		if delta == "" {
			return nil
		}
		p.isFirst = false
		if _, err := fmt.Fprint(p.w, p.prefix); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(p.w, delta)
	return err
}

// HandleFinal prints the full text if nothing was streamed for this turn.
func (p *Printer) HandleFinal(_ context.Context, e *EventFinal) error {
	if p.isFirst {
		text := strings.TrimLeft(e.Text, " \t\r\n")
		if text != "" {
			if _, err := fmt.Fprint(p.w, p.prefix, text); err != nil {
				return err
			}
		}
	}
	return p.endTurn()
}

func (p *Printer) HandleError(_ context.Context, _ *EventError) error {
	return p.endTurn()
}

func (p *Printer) HandleInterrupt(_ context.Context, _ *EventInterrupt) error {
	return p.endTurn()
}

func (p *Printer) endTurn() error {
	p.isFirst = true
	_, err := fmt.Fprintln(p.w)
	return err
}

// StepPrinterFunc returns a router handler printing assistant replies to w.
func StepPrinterFunc(prefix string, w io.Writer) func(msg *message.Message) error {
	return NewChatDispatchHandler(NewPrinter(prefix, w))
}
