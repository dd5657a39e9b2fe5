// Package types provides core types shared across the parley service.
// This package has ZERO dependencies on other parley packages to avoid
// circular imports. All other packages should import types from here.
//
// The main contents are:
//
//   - Message: the action/observation envelope exchanged with participants
//   - TaskData: the typed extension payload carried by a Message
//   - Persona, Location: scenario content assigned for one conversation
//   - ConversationContext: the immutable per-conversation scenario
//   - Utterance, Rating, ProblemData: transcript entries and annotations
//   - Error, ErrorCode: structured error taxonomy
package types
