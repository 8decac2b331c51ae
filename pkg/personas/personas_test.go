package personas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/persona/pkg/conversation"
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected conversation.Snapshot
	}{
		{
			name:     "text",
			file:     "persona.txt",
			content:  "You are a pirate.\r\nSpeak like one.\r\n",
			expected: conversation.Snapshot{Persona: []types.Message{types.Text("You are a pirate.\nSpeak like one.")}},
		},
		{
			name:    "json snapshot",
			file:    "persona.json",
			content: `{"persona":[{"role":"system","content":"p"}],"history":[{"role":"user","content":"h"}],"instructions":[{"role":"system","content":"i"}]}`,
			expected: conversation.Snapshot{
				Persona:      []types.Message{types.NewMessage(types.RoleSystem, "p")},
				History:      []types.Message{types.NewMessage(types.RoleUser, "h")},
				Instructions: []types.Message{types.NewMessage(types.RoleSystem, "i")},
			},
		},
		{
			name:     "json message list",
			file:     "persona.json",
			content:  `[{"role":"system","content":"a"},{"role":"system","content":"b"}]`,
			expected: conversation.Snapshot{Persona: []types.Message{types.NewMessage(types.RoleSystem, "a"), types.NewMessage(types.RoleSystem, "b")}},
		},
		{
			name:     "brace text that is not json",
			file:     "persona.txt",
			content:  "{you are} a poet",
			expected: conversation.Snapshot{Persona: []types.Message{types.Text("{you are} a poet")}},
		},
		{
			name: "yaml snapshot",
			file: "persona.yaml",
			content: `persona:
  - role: system
    content: p
instructions:
  - role: system
    content: i
`,
			expected: conversation.Snapshot{
				Persona:      []types.Message{types.NewMessage(types.RoleSystem, "p")},
				Instructions: []types.Message{types.NewMessage(types.RoleSystem, "i")},
			},
		},
		{
			name:     "empty text",
			file:     "persona.txt",
			content:  "\r\n  \n",
			expected: conversation.Snapshot{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeFile(t, tt.file, tt.content), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestLoadRejectsInvalidSnapshot(t *testing.T) {
	_, err := Load(writeFile(t, "persona.json", `{"history":[]}`), nil)
	var vErr *conversation.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), nil)
	assert.Error(t, err)
}

func TestLoadTemplate(t *testing.T) {
	path := writeFile(t, "persona.txt", `You are {{ .name | upper }}, {{ default "an assistant" .role }}.`)

	s, err := Load(path, &LoadOptions{
		Template:  true,
		Variables: map[string]interface{}{"name": "hal", "role": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Message{types.Text("You are HAL, an assistant.")}, s.Persona)

	_, err = Load(path, &LoadOptions{Template: true})
	assert.Error(t, err)

	// without templating the text is taken literally
	s, err = Load(path, nil)
	require.NoError(t, err)
	assert.Contains(t, s.Persona[0].Content, "{{ .name | upper }}")
}

func TestSaveAndLoad(t *testing.T) {
	p := conversation.NewPersona(nil, conversation.WithPersona(types.Text("p")))
	p.PushMessage(types.Text("hello"))

	for _, name := range []string{"state.json", "state.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, p.Snapshot()))

			s, err := Load(path, nil)
			require.NoError(t, err)
			assert.Equal(t, p.Snapshot(), s)
		})
	}
}

func TestDefaultPersona(t *testing.T) {
	s := DefaultPersona()
	require.Len(t, s.Persona, 1)
	assert.NotEmpty(t, s.Persona[0].Content)
	assert.Empty(t, s.History)
}
