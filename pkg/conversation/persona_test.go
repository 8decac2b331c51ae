package conversation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/go-go-golems/persona/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// wordCounter counts whitespace separated words.
var wordCounter = tokens.CounterFunc(func(text string) int {
	return len(strings.Fields(text))
})

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func requireCountsInSync(t *testing.T, p *Persona) {
	t.Helper()
	require.Equal(t, p.CountTokens(p.Persona()...), p.PersonaTokenCount())
	require.Equal(t, p.CountTokens(p.History()...), p.HistoryTokenCount())
	require.Equal(t, p.CountTokens(p.Instructions()...), p.InstructionTokenCount())
	require.Equal(t, p.PersonaTokenCount()+p.HistoryTokenCount()+p.InstructionTokenCount(), p.TokenCount())
}

func TestMutatorsKeepCountsInSync(t *testing.T) {
	p := NewPersona(wordCounter, WithPersona(types.Text("you are helpful")))
	requireCountsInSync(t, p)
	assert.Equal(t, []types.Message{types.NewMessage(types.RoleSystem, "you are helpful")}, p.Persona())

	p.SetInstructions(types.Text("be brief"), types.NewMessage(types.RoleUser, "really"))
	requireCountsInSync(t, p)
	assert.Equal(t, types.RoleSystem, p.Instructions()[0].Role)
	assert.Equal(t, types.RoleUser, p.Instructions()[1].Role)

	p.PushMessage(types.Text("hello there"))
	requireCountsInSync(t, p)
	assert.Equal(t, types.RoleUser, p.History()[0].Role)

	text, err := p.PushResponse(MessagesResponse(types.Text("hi"), types.NewMessage(types.RoleUser, "x"), types.Text("how are you")))
	require.NoError(t, err)
	assert.Equal(t, "hi\nhow are you", text)
	requireCountsInSync(t, p)

	text, err = p.PushResponse(CompletionResponse(&types.Response{Choices: []types.Choice{
		{Index: 1, Message: types.NewMessage(types.RoleAssistant, "other")},
		{Index: 0, Message: types.NewMessage(types.RoleAssistant, "first choice")},
	}}))
	require.NoError(t, err)
	assert.Equal(t, "first choice", text)
	requireCountsInSync(t, p)
	assert.Equal(t, 5, len(p.History()))

	p.Condense()
	requireCountsInSync(t, p)

	p.ClearInstructions()
	requireCountsInSync(t, p)
	assert.Equal(t, 0, p.InstructionTokenCount())

	p.ClearHistory()
	requireCountsInSync(t, p)
	assert.Empty(t, p.History())

	p.Clear()
	requireCountsInSync(t, p)
	assert.Equal(t, 0, p.TokenCount())
}

func TestPushResponseErrors(t *testing.T) {
	p := NewPersona(wordCounter)

	_, err := p.PushResponse(CompletionResponse(&types.Response{}))
	assert.True(t, errors.Is(err, ErrNoChoices))

	_, err = p.PushResponse(CompletionResponse(nil))
	assert.True(t, errors.Is(err, ErrNoChoices))

	_, err = p.PushResponse(ResponseValue{})
	assert.True(t, errors.Is(err, ErrUnknownResponseKind))

	assert.Empty(t, p.History())
}

func TestCondenseDropsOldestPrefix(t *testing.T) {
	p := NewPersona(wordCounter,
		WithMaxContextTokenCount(10),
		WithPersona(types.Text(words(3))),
	)
	p.PushMessage(types.Text("a a a a"), types.Text("b b b b"), types.Text("c c c c"))
	require.Equal(t, 15, p.TokenCount())
	require.True(t, p.IsContextTooLong())

	assert.True(t, p.Condense())
	assert.Equal(t, []types.Message{types.NewMessage(types.RoleUser, "c c c c")}, p.History())
	assert.Equal(t, 7, p.TokenCount())
	requireCountsInSync(t, p)

	assert.False(t, p.Condense())
	assert.Equal(t, []types.Message{types.NewMessage(types.RoleUser, "c c c c")}, p.History())
}

func TestCondenseDisabledWithoutBudget(t *testing.T) {
	p := NewPersona(wordCounter, WithMaxContextTokenCount(0))
	p.PushMessage(types.Text(words(100)))
	assert.False(t, p.Condense())
	assert.Len(t, p.History(), 1)
	assert.Len(t, p.GetAPIMessages(), 1)
}

func TestGetAPIMessagesIsReadOnly(t *testing.T) {
	p := NewPersona(wordCounter,
		WithMaxContextTokenCount(10),
		WithPersona(types.Text(words(3))),
		WithInstructions(types.Text("be nice")),
	)
	p.PushMessage(types.Text("a a a"), types.Text("b b b"), types.Text("c c"))
	before := p.History()

	msgs := p.GetAPIMessages(types.Text("extra"))
	// 3 + 8 + 2 + 1 = 14 > 10, dropping "a a a" gives 11, dropping "b b b" gives 8
	assert.Equal(t, []types.Message{
		types.NewMessage(types.RoleSystem, words(3)),
		types.NewMessage(types.RoleUser, "c c"),
		types.NewMessage(types.RoleSystem, "be nice"),
		types.NewMessage(types.RoleSystem, "extra"),
	}, msgs)

	assert.Equal(t, before, p.History())
	requireCountsInSync(t, p)
}

func TestGetAPIMessagesKeepsOrderWhenWithinBudget(t *testing.T) {
	p := NewPersona(wordCounter,
		WithPersona(types.Text("p")),
		WithInstructions(types.Text("i")),
		WithHistory(types.Text("u"), types.NewMessage(types.RoleAssistant, "a")),
	)
	assert.Equal(t, []types.Message{
		types.NewMessage(types.RoleSystem, "p"),
		types.NewMessage(types.RoleUser, "u"),
		types.NewMessage(types.RoleAssistant, "a"),
		types.NewMessage(types.RoleSystem, "i"),
	}, p.GetAPIMessages())
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := NewPersona(wordCounter,
		WithPersona(types.Text("you are a cat")),
		WithInstructions(types.Text("meow")),
	)
	p.PushMessage(types.Message{Role: types.RoleUser, Name: "bob", Content: "hi cat"})
	_, err := p.PushResponse(MessagesResponse(types.Text("meow meow")))
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		b, err := json.Marshal(p)
		require.NoError(t, err)

		s, err := ParseSnapshotJSON(b)
		require.NoError(t, err)
		q := NewPersonaFromSnapshot(wordCounter, s)
		assertSamePersona(t, p, q)

		r := NewPersona(wordCounter)
		require.NoError(t, json.Unmarshal(b, r))
		assertSamePersona(t, p, r)
	})

	t.Run("yaml", func(t *testing.T) {
		b, err := yaml.Marshal(p.Snapshot())
		require.NoError(t, err)

		var s Snapshot
		require.NoError(t, yaml.Unmarshal(b, &s))
		assertSamePersona(t, p, NewPersonaFromSnapshot(wordCounter, s))
	})
}

func TestSnapshotOfEmptyPersona(t *testing.T) {
	b, err := json.Marshal(NewPersona(wordCounter))
	require.NoError(t, err)
	assert.JSONEq(t, `{"persona":[],"history":[],"instructions":[]}`, string(b))
}

func assertSamePersona(t *testing.T, expected, actual *Persona) {
	t.Helper()
	assert.Equal(t, expected.Persona(), actual.Persona())
	assert.Equal(t, expected.History(), actual.History())
	assert.Equal(t, expected.Instructions(), actual.Instructions())
	assert.Equal(t, expected.PersonaTokenCount(), actual.PersonaTokenCount())
	assert.Equal(t, expected.HistoryTokenCount(), actual.HistoryTokenCount())
	assert.Equal(t, expected.InstructionTokenCount(), actual.InstructionTokenCount())
}

func TestValidateSnapshotJSON(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"full", `{"persona":[{"role":"system","content":"x"}],"history":[],"instructions":[]}`, true},
		{"persona only", `{"persona":[{"role":"system","content":"x"}]}`, true},
		{"missing persona", `{"history":[]}`, false},
		{"persona not a list", `{"persona":"x"}`, false},
		{"unknown field", `{"persona":[],"mood":"happy"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshotJSON([]byte(tt.doc))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.NotEmpty(t, vErr.Errors)
			assert.Contains(t, vErr.Error(), "invalid snapshot")
		})
	}
}

func TestUsage(t *testing.T) {
	p := NewPersona(wordCounter,
		WithMaxContextTokenCount(20),
		WithPersona(types.Text(words(3))),
		WithInstructions(types.Text(words(2))),
		WithHistory(types.Text(words(4))),
	)
	u := p.Usage()
	assert.Equal(t, 5, u.Fixed())
	assert.Equal(t, 11, u.Available())
	assert.Equal(t, 20, u.Max)
}
