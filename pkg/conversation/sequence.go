package conversation

import (
	"github.com/go-go-golems/persona/pkg/steps/ai/types"
	"github.com/go-go-golems/persona/pkg/tokens"
)

// Sequence is an ordered list of messages together with its token count.
// Only the Persona mutates sequences, keeping the count equal to the sum of
// the per-message counts.
type Sequence struct {
	messages   []types.Message
	counts     []int
	tokenCount int
}

func (s *Sequence) Messages() []types.Message {
	ret := make([]types.Message, len(s.messages))
	copy(ret, s.messages)
	return ret
}

func (s *Sequence) Len() int {
	return len(s.messages)
}

func (s *Sequence) TokenCount() int {
	return s.tokenCount
}

func (s *Sequence) set(counter tokens.Counter, msgs []types.Message) {
	s.clear()
	s.append(counter, msgs)
}

func (s *Sequence) append(counter tokens.Counter, msgs []types.Message) {
	for _, m := range msgs {
		n := counter.Count(m.Content)
		s.messages = append(s.messages, m)
		s.counts = append(s.counts, n)
		s.tokenCount += n
	}
}

// dropFront removes the oldest message and returns its token count.
func (s *Sequence) dropFront() int {
	if len(s.messages) == 0 {
		return 0
	}
	n := s.counts[0]
	s.messages = s.messages[1:]
	s.counts = s.counts[1:]
	s.tokenCount -= n
	return n
}

func (s *Sequence) clear() {
	s.messages = nil
	s.counts = nil
	s.tokenCount = 0
}

// clone returns a copy that shares no backing arrays with s.
func (s *Sequence) clone() Sequence {
	ret := Sequence{tokenCount: s.tokenCount}
	if s.messages != nil {
		ret.messages = append([]types.Message{}, s.messages...)
		ret.counts = append([]int{}, s.counts...)
	}
	return ret
}
