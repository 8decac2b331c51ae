package tokens

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/pkg/errors"
)

type CountCommand struct {
	*cmds.CommandDescription
}

func NewCountCommand() (*CountCommand, error) {
	return &CountCommand{
		CommandDescription: cmds.NewCommandDescription(
			"count",
			cmds.WithShort("Count the tokens of the input using a specific model and codec"),
			cmds.WithFlags(codecFlags()...),
			cmds.WithArguments(inputArgument()),
		),
	}, nil
}

var _ cmds.WriterCommand = (*CountCommand)(nil)

func (c *CountCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &CodecSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize settings")
	}
	return c.count(s, w)
}

func (c *CountCommand) count(s *CodecSettings, w io.Writer) error {
	codec, err := s.getCodec()
	if err != nil {
		return err
	}

	ids, _, err := codec.Encode(s.Input)
	if err != nil {
		return errors.Wrap(err, "error encoding input")
	}

	_, err = fmt.Fprintf(w, "Model: %s\nCodec: %s\nTotal tokens: %d\n", s.Model, codec.GetName(), len(ids))
	return err
}
