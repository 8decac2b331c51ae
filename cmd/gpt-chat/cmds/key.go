package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/persona/pkg/steps/ai/settings"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
)

// BindAPIKey makes the openai-api-key setting resolve, in order, from the
// --key flag, the GPT_CHAT_OPENAI_API_KEY and OPENAI_API_KEY environment
// variables and the config file.
func BindAPIKey(v *viper.Viper) error {
	return v.BindEnv(settings.OpenAIAPIKeySlug, "GPT_CHAT_OPENAI_API_KEY", "OPENAI_API_KEY")
}

// AskAPIKey prompts for the API key, masking the input on a terminal.
func AskAPIKey(in io.Reader, out io.Writer) (string, error) {
	_, err := fmt.Fprintln(out, "An OpenAI API key is required to use this program. Please enter the key below.")
	if err != nil {
		return "", err
	}
	_, err = fmt.Fprintln(out, "(You can also provide an API key by specifying the `OPENAI_API_KEY` env variable.)")
	if err != nil {
		return "", err
	}

	options := &input.Options{
		Required: true,
		Loop:     true,
	}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		options.Mask = true
	}

	ui := &input.UI{Reader: in, Writer: out}
	key, err := ui.Ask("OpenAI API key", options)
	if err != nil {
		return "", errors.Wrap(err, "could not read API key")
	}
	return strings.TrimSpace(key), nil
}
