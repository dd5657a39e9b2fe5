package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdchat/parley/types"
)

func TestStripAnnotationMarkup(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no delimiter", "hello", "hello"},
		{"trailing markup", "hello<br>extra", "hello"},
		{"first occurrence only", "a<br>b<br>c", "a"},
		{"leading delimiter", "<br>annotations only", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripAnnotationMarkup(tc.in))
		})
	}
}

func TestDialogHistoryAppend(t *testing.T) {
	h := NewDialogHistory()
	assert.Equal(t, 0, h.Len())
	_, ok := h.Last()
	assert.False(t, ok)

	h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "Quiet night.", SpeakerID: "smuggler"})
	h.Append(types.Utterance{AgentIndex: types.HumanAgentIndex, Text: "Too quiet.", SpeakerID: "lighthouse keeper"})

	assert.Equal(t, 2, h.Len())
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "Too quiet.", last.Text)

	// Entries returns a copy: mutating it leaves the transcript intact.
	entries := h.Entries()
	entries[0].Text = "mutated"
	fresh := h.Entries()
	assert.Equal(t, "Quiet night.", fresh[0].Text)
}

func TestAttachProblemData(t *testing.T) {
	pd := types.ProblemData{"contradiction": true}

	t.Run("attaches to most recent bot utterance", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "I never said that.", SpeakerID: "smuggler"})
		require.NoError(t, h.AttachProblemData(pd))

		last, _ := h.Last()
		assert.Equal(t, pd, last.ProblemData)
	})

	t.Run("empty transcript fails", func(t *testing.T) {
		h := NewDialogHistory()
		err := h.AttachProblemData(pd)
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})

	t.Run("human utterance fails", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.HumanAgentIndex, Text: "hello", SpeakerID: "keeper"})
		err := h.AttachProblemData(pd)
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})

	t.Run("double attach fails, first attach survives", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "x", SpeakerID: "bot"})
		require.NoError(t, h.AttachProblemData(pd))

		err := h.AttachProblemData(types.ProblemData{"repetition": true})
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))

		last, _ := h.Last()
		assert.Equal(t, pd, last.ProblemData, "original annotation must not be overwritten")
	})

	t.Run("empty problem data fails", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "x", SpeakerID: "bot"})
		err := h.AttachProblemData(types.ProblemData{})
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})
}

func TestSetFinalRating(t *testing.T) {
	t.Run("sets once on last entry", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "a", SpeakerID: "bot"})
		h.Append(types.Utterance{AgentIndex: types.HumanAgentIndex, Text: "b", SpeakerID: "keeper"})

		require.NoError(t, h.SetFinalRating(&types.Rating{Score: 4}))
		entries := h.Entries()
		assert.Nil(t, entries[0].FinalRating)
		require.NotNil(t, entries[1].FinalRating)
		assert.Equal(t, 4, entries[1].FinalRating.Score)
	})

	t.Run("double set fails", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "a", SpeakerID: "bot"})
		require.NoError(t, h.SetFinalRating(&types.Rating{Score: 5}))
		err := h.SetFinalRating(&types.Rating{Score: 1})
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})

	t.Run("empty transcript fails", func(t *testing.T) {
		h := NewDialogHistory()
		err := h.SetFinalRating(&types.Rating{Score: 3})
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})

	t.Run("nil rating fails", func(t *testing.T) {
		h := NewDialogHistory()
		h.Append(types.Utterance{AgentIndex: types.BotAgentIndex, Text: "a", SpeakerID: "bot"})
		err := h.SetFinalRating(nil)
		assert.True(t, types.IsErrorCode(err, types.ErrInvariantViolation))
	})
}
