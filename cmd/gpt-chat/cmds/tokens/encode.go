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

type EncodeCommand struct {
	*cmds.CommandDescription
}

func NewEncodeCommand() (*EncodeCommand, error) {
	return &EncodeCommand{
		CommandDescription: cmds.NewCommandDescription(
			"encode",
			cmds.WithShort("Encode the input into token ids"),
			cmds.WithFlags(codecFlags()...),
			cmds.WithArguments(inputArgument()),
		),
	}, nil
}

var _ cmds.WriterCommand = (*EncodeCommand)(nil)

func (c *EncodeCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &CodecSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize settings")
	}
	return c.encode(s, w)
}

func (c *EncodeCommand) encode(s *CodecSettings, w io.Writer) error {
	codec, err := s.getCodec()
	if err != nil {
		return err
	}

	ids, _, err := codec.Encode(s.Input)
	if err != nil {
		return errors.Wrap(err, "error encoding input")
	}

	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = strconv.FormatUint(uint64(id), 10)
	}

	_, err = fmt.Fprintln(w, strings.Join(ss, " "))
	return err
}
