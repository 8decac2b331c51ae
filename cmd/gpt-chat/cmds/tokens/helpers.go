package tokens

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/persona/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"
)

// CodecSettings are the parameters shared by count, encode and decode.
type CodecSettings struct {
	Model string `glazed.parameter:"model"`
	Codec string `glazed.parameter:"codec"`
	Input string `glazed.parameter:"input"`
}

func (s *CodecSettings) getCodec() (tokenizer.Codec, error) {
	return tokens.GetCodec(s.Model, s.Codec)
}

func codecFlags() []*parameters.ParameterDefinition {
	return []*parameters.ParameterDefinition{
		parameters.NewParameterDefinition(
			"model",
			parameters.ParameterTypeString,
			parameters.WithHelp("Model used for encoding"),
			parameters.WithDefault("gpt-4"),
		),
		parameters.NewParameterDefinition(
			"codec",
			parameters.ParameterTypeString,
			parameters.WithHelp("Codec used for encoding (default: derived from the model)"),
		),
	}
}

func inputArgument() *parameters.ParameterDefinition {
	return parameters.NewParameterDefinition(
		"input",
		parameters.ParameterTypeStringFromFiles,
		parameters.WithHelp("Input files, - reads stdin"),
		parameters.WithRequired(true),
	)
}

// NewTokensCommand groups the tokenizer subcommands.
func NewTokensCommand() (*cobra.Command, error) {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect how text is split into tokens",
	}

	countCmd, err := NewCountCommand()
	if err != nil {
		return nil, err
	}
	encodeCmd, err := NewEncodeCommand()
	if err != nil {
		return nil, err
	}
	decodeCmd, err := NewDecodeCommand()
	if err != nil {
		return nil, err
	}
	for _, wc := range []cmds.WriterCommand{countCmd, encodeCmd, decodeCmd} {
		command, err := cli.BuildCobraCommandFromWriterCommand(wc)
		if err != nil {
			return nil, errors.Wrapf(err, "could not build %s command", wc.Description().Name)
		}
		tokensCmd.AddCommand(command)
	}

	listModelsCmd, err := NewListModelsCommand()
	if err != nil {
		return nil, err
	}
	listCodecsCmd, err := NewListCodecsCommand()
	if err != nil {
		return nil, err
	}
	for _, gc := range []cmds.GlazeCommand{listModelsCmd, listCodecsCmd} {
		command, err := cli.BuildCobraCommandFromGlazeCommand(gc)
		if err != nil {
			return nil, errors.Wrapf(err, "could not build %s command", gc.Description().Name)
		}
		tokensCmd.AddCommand(command)
	}

	return tokensCmd, nil
}
