package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinishReasonJSON(t *testing.T) {
	b, err := json.Marshal(Choice{Index: 1, Message: NewMessage(RoleAssistant, "hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1,"message":{"role":"assistant","content":"hi"},"finish_reason":null}`, string(b))

	var c Choice
	require.NoError(t, json.Unmarshal([]byte(`{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}`), &c))
	assert.Equal(t, FinishReasonStop, c.FinishReason)

	require.NoError(t, json.Unmarshal([]byte(`{"index":0,"message":{"role":"assistant","content":""},"finish_reason":null}`), &c))
	assert.Equal(t, FinishReasonNone, c.FinishReason)
}

func TestWithDefaultRole(t *testing.T) {
	msgs := WithDefaultRole(RoleSystem, Text("a"), NewMessage(RoleUser, "b"))
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "b"},
	}, msgs)
}

func TestResponseChoice(t *testing.T) {
	r := &Response{Choices: []Choice{{Index: 2, Message: NewMessage(RoleAssistant, "x")}}}
	c, ok := r.Choice(2)
	require.True(t, ok)
	assert.Equal(t, "x", c.Message.Content)

	_, ok = r.Choice(0)
	assert.False(t, ok)

	var nilResp *Response
	_, ok = nilResp.Choice(0)
	assert.False(t, ok)
}
