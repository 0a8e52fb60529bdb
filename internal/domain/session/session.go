// Package session holds the conversation state machine for one
// character-editing context.
package session

import (
	"time"

	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/proposal"
)

// State is the conversation state driven by the remote reasoning service.
type State string

const (
	StateIdle                 State = "idle"
	StateUnderstanding        State = "understanding"
	StatePlanning             State = "planning"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
)

// Transition labels the edges of the state machine. The modify edge is the
// deliberate shortcut where plain text typed while a proposal is pending is
// routed as an adjustment to that proposal.
type Transition string

const (
	TransitionSend    Transition = "send"
	TransitionPropose Transition = "propose"
	TransitionModify  Transition = "modify"
	TransitionConfirm Transition = "confirm"
	TransitionResolve Transition = "resolve"
	TransitionCancel  Transition = "cancel"
)

// Speaker identifies who authored a transcript turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// maxTranscriptTurns caps the transcript to keep the reasoning context
// bounded.
const maxTranscriptTurns = 20

// Turn is one entry in the ordered transcript.
type Turn struct {
	Speaker      Speaker   `json:"speaker"`
	Text         string    `json:"text"`
	ReferenceURL string    `json:"reference_url,omitempty"`
	ActionTaken  string    `json:"action_taken,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is the client-side view of one conversation. The server-issued id
// is nil-equivalent (empty) until the first propose response arrives. At
// most one proposal is associated with the session at any time.
type Session struct {
	ID          string
	CharacterID string
	State       State
	Transcript  []Turn
	Proposal    *proposal.Proposal
	CreatedAt   time.Time
}

// New creates an idle session for a character context.
func New(characterID string) *Session {
	return &Session{
		CharacterID: characterID,
		State:       StateIdle,
		CreatedAt:   time.Now(),
	}
}

// AddTurn appends a turn and trims the transcript to the retained window.
func (s *Session) AddTurn(turn Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.Transcript = append(s.Transcript, turn)
	if len(s.Transcript) > maxTranscriptTurns {
		s.Transcript = s.Transcript[len(s.Transcript)-maxTranscriptTurns:]
	}
}

// Awaiting reports whether a proposal is pending user confirmation.
func (s *Session) Awaiting() bool {
	return s.State == StateAwaitingConfirmation && s.Proposal != nil
}

// RouteSend decides how a send is dispatched: while a proposal is awaiting
// confirmation plain text is a modification of that proposal, otherwise it
// is a fresh propose call.
func (s *Session) RouteSend() Transition {
	if s.Awaiting() {
		return TransitionModify
	}
	return TransitionPropose
}

// SetProposal installs (or replaces) the pending proposal and moves the
// session to awaiting_confirmation. A modify round trip replaces the object
// wholesale.
func (s *Session) SetProposal(p *proposal.Proposal) {
	s.Proposal = p
	s.State = StateAwaitingConfirmation
}

// TakeProposal removes and returns the pending proposal for confirmation.
func (s *Session) TakeProposal() (*proposal.Proposal, error) {
	if s.Proposal == nil {
		return nil, flowerrors.ErrNoPendingProposal
	}
	p := s.Proposal
	s.Proposal = nil
	return p, nil
}

// CancelPending drops the proposal and returns to idle. Local only; any
// server notification is best-effort and owned by the caller.
func (s *Session) CancelPending() {
	s.Proposal = nil
	s.State = StateIdle
}

// Clear wipes transcript, proposal and the server-issued id.
func (s *Session) Clear() {
	s.ID = ""
	s.Transcript = nil
	s.Proposal = nil
	s.State = StateIdle
}

// ApplyServerState adopts the state and session id reported by a propose or
// confirm response.
func (s *Session) ApplyServerState(sessionID string, state State) {
	if sessionID != "" {
		s.ID = sessionID
	}
	if state != "" {
		s.State = state
	}
}
