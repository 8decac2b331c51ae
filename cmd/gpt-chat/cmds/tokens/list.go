package tokens

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/persona/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

var models = []tokenizer.Model{
	tokenizer.GPT4,
	tokenizer.GPT35Turbo,
	tokenizer.TextEmbeddingAda002,
	tokenizer.TextDavinci003,
	tokenizer.TextDavinci002,
	tokenizer.CodeDavinci002,
	tokenizer.CodeDavinci001,
	tokenizer.CodeCushman002,
	tokenizer.CodeCushman001,
	tokenizer.DavinciCodex,
	tokenizer.CushmanCodex,
	tokenizer.TextDavinci001,
	tokenizer.TextCurie001,
	tokenizer.TextBabbage001,
	tokenizer.TextAda001,
	tokenizer.Davinci,
	tokenizer.Curie,
	tokenizer.Babbage,
	tokenizer.Ada,
}

var encodings = []tokenizer.Encoding{
	tokenizer.R50kBase,
	tokenizer.P50kBase,
	tokenizer.P50kEdit,
	tokenizer.Cl100kBase,
}

type ListModelsCommand struct {
	*cmds.CommandDescription
}

func NewListModelsCommand() (*ListModelsCommand, error) {
	glazedLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create glazed parameter layer")
	}
	return &ListModelsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list-models",
			cmds.WithShort("List the models known to the tokenizer"),
			cmds.WithLayersList(glazedLayer),
		),
	}, nil
}

var _ cmds.GlazeCommand = (*ListModelsCommand)(nil)

func (c *ListModelsCommand) RunIntoGlazeProcessor(ctx context.Context, _ *layers.ParsedLayers, gp middlewares.Processor) error {
	for _, m := range models {
		codec, err := tokens.GetCodec(string(m), "")
		if err != nil {
			return err
		}
		row := types.NewRow(
			types.MRP("model_name", string(m)),
			types.MRP("codec_name", codec.GetName()),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type ListCodecsCommand struct {
	*cmds.CommandDescription
}

func NewListCodecsCommand() (*ListCodecsCommand, error) {
	glazedLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create glazed parameter layer")
	}
	return &ListCodecsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list-codecs",
			cmds.WithShort("List the available codecs"),
			cmds.WithLayersList(glazedLayer),
		),
	}, nil
}

var _ cmds.GlazeCommand = (*ListCodecsCommand)(nil)

func (c *ListCodecsCommand) RunIntoGlazeProcessor(ctx context.Context, _ *layers.ParsedLayers, gp middlewares.Processor) error {
	for _, e := range encodings {
		if err := gp.AddRow(ctx, types.NewRow(types.MRP("codec_name", string(e)))); err != nil {
			return err
		}
	}
	return nil
}
