package tokens

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/pkg/errors"
)

type DecodeCommand struct {
	*cmds.CommandDescription
}

func NewDecodeCommand() (*DecodeCommand, error) {
	return &DecodeCommand{
		CommandDescription: cmds.NewCommandDescription(
			"decode",
			cmds.WithShort("Decode whitespace separated token ids back into text"),
			cmds.WithFlags(codecFlags()...),
			cmds.WithArguments(inputArgument()),
		),
	}, nil
}

var _ cmds.WriterCommand = (*DecodeCommand)(nil)

func (c *DecodeCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &CodecSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize settings")
	}
	return c.decode(s, w)
}

func (c *DecodeCommand) decode(s *CodecSettings, w io.Writer) error {
	codec, err := s.getCodec()
	if err != nil {
		return err
	}

	var ids []uint
	for _, t := range strings.Fields(s.Input) {
		id, err := strconv.ParseUint(t, 10, 0)
		if err != nil {
			return errors.Errorf("invalid token id: %s", t)
		}
		ids = append(ids, uint(id))
	}

	text, err := codec.Decode(ids)
	if err != nil {
		return errors.Wrap(err, "error decoding")
	}

	_, err = fmt.Fprint(w, text)
	return err
}
