package types

// NullID is the speaker identity recorded when a participant action carries
// no identity of its own.
const NullID = "NULL_ID"

// Rating is the final quality score a human assigns to the whole
// conversation. Its presence on an action is what terminates a conversation.
type Rating struct {
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// ProblemData is a checkbox-style annotation describing quality issues with
// one specific bot utterance. Keys are annotation bucket names; true means
// the worker flagged the bucket.
type ProblemData map[string]bool

// TaskData is the typed extension payload of a Message. All fields are
// optional; which ones are meaningful depends on the direction of travel
// (scene-setting observations carry personas/location, rating actions carry
// FinalRating and/or ProblemData).
type TaskData struct {
	Personas []Persona `json:"personas,omitempty"`
	Location *Location `json:"location,omitempty"`

	// FinalRating terminates the conversation when non-nil.
	FinalRating *Rating `json:"final_rating,omitempty"`

	// ProblemData annotates the bot utterance immediately preceding the
	// action that carries it.
	ProblemData ProblemData `json:"problem_data_for_prior_message,omitempty"`
}

// Message is the single envelope exchanged with participants, both as an
// observation delivered to a party and as the action returned by one. The
// required fields are ID, Text and EpisodeDone; everything else is an
// optional, explicitly typed extension.
type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	EpisodeDone bool   `json:"episode_done"`

	// HumanTurn is set only on bot actions: the bot's own policy decides
	// whether the human speaks next.
	HumanTurn bool `json:"human_turn,omitempty"`

	// NeedsRating is set on bot utterances re-delivered to the human to
	// request a rating/annotation action in response.
	NeedsRating bool `json:"needs_rating,omitempty"`

	TaskData *TaskData `json:"task_data,omitempty"`
}

// FinalRating returns the final rating carried by the message, or nil.
// Nil-safe on missing task data.
func (m Message) FinalRating() *Rating {
	if m.TaskData == nil {
		return nil
	}
	return m.TaskData.FinalRating
}

// ProblemData returns the prior-message annotation carried by the message,
// or nil. Nil-safe on missing task data.
func (m Message) ProblemData() ProblemData {
	if m.TaskData == nil {
		return nil
	}
	return m.TaskData.ProblemData
}

// SpeakerID returns the message's declared identity, or NullID when absent.
func (m Message) SpeakerID() string {
	if m.ID == "" {
		return NullID
	}
	return m.ID
}

// Validate checks the message shape at a proxy boundary. Deep components
// assume messages have already passed through here.
func (m Message) Validate() error {
	if td := m.TaskData; td != nil {
		if td.FinalRating != nil && td.FinalRating.Score < 0 {
			return NewErrorf(ErrInvalidMessage, "final rating score %d is negative", td.FinalRating.Score)
		}
		for bucket := range td.ProblemData {
			if bucket == "" {
				return NewError(ErrInvalidMessage, "problem data contains an empty bucket name")
			}
		}
		for i, p := range td.Personas {
			if p.Name == "" {
				return NewErrorf(ErrInvalidMessage, "persona %d has an empty name", i)
			}
		}
	}
	return nil
}
