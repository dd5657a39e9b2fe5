package types

// Indexes of the two conversation parties within a persona set and within a
// transcript. The human always holds index 0, the bot index 1.
const (
	HumanAgentIndex = 0
	BotAgentIndex   = 1
)

// Persona is a named role description assigned to one participant for the
// duration of a single conversation. Immutable once generated.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"persona" yaml:"persona"`
}

// Location is the shared setting a conversation takes place in.
type Location struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// ConversationContext is the immutable scenario bound to one conversation:
// the persona set plus an optional shared location. Index 0 of Personas is
// the human's assigned identity, index 1 the bot's; additional personas are
// scene dressing.
type ConversationContext struct {
	DatasetTag string    `json:"context_dataset"`
	Personas   []Persona `json:"personas"`
	Location   *Location `json:"location,omitempty"`
}

// Validate enforces the persona-count precondition: a conversation needs at
// least a human persona (index 0) and a bot persona (index 1).
func (c *ConversationContext) Validate() error {
	if c == nil {
		return NewError(ErrConfiguration, "conversation context is nil")
	}
	if len(c.Personas) < 2 {
		return NewErrorf(ErrConfiguration, "conversation context needs at least 2 personas, got %d", len(c.Personas))
	}
	for i, p := range c.Personas {
		if p.Name == "" {
			return NewErrorf(ErrConfiguration, "persona %d has an empty name", i)
		}
	}
	return nil
}

// HumanPersona returns the persona assigned to the human participant.
func (c *ConversationContext) HumanPersona() Persona {
	return c.Personas[HumanAgentIndex]
}

// BotPersona returns the persona assigned to the automated participant.
func (c *ConversationContext) BotPersona() Persona {
	return c.Personas[BotAgentIndex]
}

// Utterance is one transcript entry. Entries are append-only and immutable
// except for two sanctioned backfills performed by the engine: ProblemData
// on the most recent bot utterance, and FinalRating on the very last entry
// at termination.
type Utterance struct {
	AgentIndex  int         `json:"agent_idx"`
	Text        string      `json:"text"`
	SpeakerID   string      `json:"id"`
	ProblemData ProblemData `json:"problem_data,omitempty"`
	FinalRating *Rating     `json:"final_rating,omitempty"`
}
