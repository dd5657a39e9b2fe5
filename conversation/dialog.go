package conversation

import (
	"strings"

	"github.com/crowdchat/parley/types"
)

// annotationDelimiter separates natural-language text from renderer-injected
// annotation markup in a participant's raw text.
const annotationDelimiter = "<br>"

// StripAnnotationMarkup returns the text before the first annotation
// delimiter. Text free of the delimiter comes back unchanged.
func StripAnnotationMarkup(text string) string {
	before, _, _ := strings.Cut(text, annotationDelimiter)
	return before
}

// DialogHistory is the ordered, append-only transcript of one conversation.
// Entries are immutable after append except for the two sanctioned
// backfills: AttachProblemData on the most recent bot utterance, and
// SetFinalRating on the very last entry at termination. Either backfill
// applied where it must not be is an invariant violation and fails loudly.
//
// Not safe for concurrent use: a conversation is a single logical thread of
// control and the engine has exclusive access.
type DialogHistory struct {
	entries []types.Utterance
}

// NewDialogHistory returns an empty transcript.
func NewDialogHistory() *DialogHistory {
	return &DialogHistory{}
}

// Append adds one utterance to the end of the transcript.
func (h *DialogHistory) Append(u types.Utterance) {
	h.entries = append(h.entries, u)
}

// Len returns the number of utterances.
func (h *DialogHistory) Len() int {
	return len(h.entries)
}

// Last returns the most recent utterance.
func (h *DialogHistory) Last() (types.Utterance, bool) {
	if len(h.entries) == 0 {
		return types.Utterance{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Entries returns a copy of the transcript.
func (h *DialogHistory) Entries() []types.Utterance {
	out := make([]types.Utterance, len(h.entries))
	copy(out, h.entries)
	return out
}

// AttachProblemData attaches annotation data to the most recent utterance,
// which must be a bot utterance without existing problem data.
func (h *DialogHistory) AttachProblemData(pd types.ProblemData) error {
	if len(pd) == 0 {
		return types.NewError(types.ErrInvariantViolation, "attaching empty problem data")
	}
	if len(h.entries) == 0 {
		return types.NewError(types.ErrInvariantViolation, "attaching problem data to an empty transcript")
	}
	last := &h.entries[len(h.entries)-1]
	if last.AgentIndex != types.BotAgentIndex {
		return types.NewError(types.ErrInvariantViolation, "problem data must be attached to a bot utterance")
	}
	if last.ProblemData != nil {
		return types.NewError(types.ErrInvariantViolation, "utterance already carries problem data")
	}
	last.ProblemData = pd
	return nil
}

// SetFinalRating writes the final rating onto the last utterance, once.
func (h *DialogHistory) SetFinalRating(r *types.Rating) error {
	if r == nil {
		return types.NewError(types.ErrInvariantViolation, "final rating is nil")
	}
	if len(h.entries) == 0 {
		return types.NewError(types.ErrInvariantViolation, "setting a final rating on an empty transcript")
	}
	last := &h.entries[len(h.entries)-1]
	if last.FinalRating != nil {
		return types.NewError(types.ErrInvariantViolation, "final rating already set")
	}
	last.FinalRating = r
	return nil
}
