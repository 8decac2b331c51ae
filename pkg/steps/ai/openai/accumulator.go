package openai

import (
	"sort"

	"github.com/go-go-golems/persona/pkg/steps/ai/types"
)

// choiceAccumulator reassembles streamed choice deltas per choice index.
type choiceAccumulator struct {
	choices map[int]*types.Choice
}

func newChoiceAccumulator() *choiceAccumulator {
	return &choiceAccumulator{choices: map[int]*types.Choice{}}
}

func (a *choiceAccumulator) Add(index int, delta types.Delta, finishReason types.FinishReason) {
	c, ok := a.choices[index]
	if !ok {
		c = &types.Choice{Index: index}
		a.choices[index] = c
	}

	if delta.Role != "" && c.Message.Role == "" {
		c.Message.Role = delta.Role
	}
	c.Message.Content += delta.Content
	if finishReason != types.FinishReasonNone {
		c.FinishReason = finishReason
	}
}

// Choices returns the populated choices ordered by index.
func (a *choiceAccumulator) Choices() []types.Choice {
	indices := make([]int, 0, len(a.choices))
	for i := range a.choices {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	ret := make([]types.Choice, 0, len(indices))
	for _, i := range indices {
		c := *a.choices[i]
		if c.Message.Role == "" {
			c.Message.Role = types.RoleAssistant
		}
		ret = append(ret, c)
	}
	return ret
}
