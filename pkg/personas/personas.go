package personas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/persona/pkg/conversation"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed default.txt
var defaultPersona string

// DefaultPersona is used when no persona file is given.
func DefaultPersona() conversation.Snapshot {
	return conversation.Snapshot{
		Persona: []types.Message{types.Text(strings.TrimSpace(defaultPersona))},
	}
}

type LoadOptions struct {
	// Template renders text personas as a text/template with sprig functions.
	Template bool
	// Variables are available to the template as {{ .name }}.
	Variables map[string]interface{}
}

// Load reads a persona file.
//
// Content starting with `{` that parses as JSON is a snapshot, validated
// against conversation.SnapshotSchema. Content starting with `[` is a JSON
// list of persona messages. Files ending in .yaml or .yml are YAML snapshots.
// Anything else is the persona text, with carriage returns removed.
func Load(path string, options *LoadOptions) (conversation.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return conversation.Snapshot{}, errors.Wrapf(err, "could not read persona file %s", path)
	}
	if options == nil {
		options = &LoadOptions{}
	}

	ret, err := Parse(path, b, options)
	if err != nil {
		return conversation.Snapshot{}, errors.Wrapf(err, "could not load persona file %s", path)
	}
	return ret, nil
}

// Parse interprets the content of a persona file named name.
func Parse(name string, b []byte, options *LoadOptions) (conversation.Snapshot, error) {
	if options == nil {
		options = &LoadOptions{}
	}
	trimmed := bytes.TrimLeft(b, " \t\r\n\ufeff")

	switch ext := strings.ToLower(filepath.Ext(name)); {
	case ext == ".yaml" || ext == ".yml":
		var s conversation.Snapshot
		if err := yaml.Unmarshal(b, &s); err != nil {
			return conversation.Snapshot{}, errors.Wrap(err, "could not parse yaml persona")
		}
		return s, nil

	case len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed):
		return conversation.ParseSnapshotJSON(trimmed)

	case len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed):
		var msgs []types.Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return conversation.Snapshot{}, errors.Wrap(err, "could not parse persona messages")
		}
		return conversation.Snapshot{Persona: msgs}, nil
	}

	text := strings.ReplaceAll(string(b), "\r", "")
	if options.Template {
		rendered, err := Render(name, text, options.Variables)
		if err != nil {
			return conversation.Snapshot{}, err
		}
		text = rendered
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Snapshot{}, nil
	}

	return conversation.Snapshot{Persona: []types.Message{types.Text(text)}}, nil
}

// Render executes text as a template with the sprig function map.
func Render(name string, text string, variables map[string]interface{}) (string, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrap(err, "could not parse persona template")
	}
	if variables == nil {
		variables = map[string]interface{}{}
	}

	var b bytes.Buffer
	if err := t.Execute(&b, variables); err != nil {
		return "", errors.Wrap(err, "could not render persona template")
	}
	return b.String(), nil
}

// Save writes a snapshot as YAML if path ends in .yaml or .yml, else as JSON.
func Save(path string, s conversation.Snapshot) error {
	var b []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(s)
	default:
		b, err = json.Marshal(s)
	}
	if err != nil {
		return errors.Wrap(err, "could not serialize persona")
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "could not write %s", path)
	}
	log.Debug().Str("path", path).Int("bytes", len(b)).Msg("saved persona")
	return nil
}
