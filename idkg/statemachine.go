package idkg

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TranscriptStatus is one receiver's view of a single transcript's lifecycle,
// per spec.md §4.5. Modeled directly on the teacher's
// internal/dkg/state_machine.go Status enum and its isValidStateChange
// transition table, generalized from drand's per-epoch DKG proposal
// lifecycle to this engine's per-transcript lifecycle.
type TranscriptStatus uint32

const (
	// Announced is the state a receiver starts in once TranscriptParams for
	// a transcript are known (via the outer consensus layer), before any
	// dealing has been created or received.
	Announced TranscriptStatus = iota
	// Dealt is entered only by a dealer, once it has emitted its own dealing.
	Dealt
	// Assembled means a Transcript object exists for this id and
	// verify_transcript has passed.
	Assembled
	// Loaded means load_transcript ran with no complaints and the receiver's
	// share is stored.
	Loaded
	// Complained means load_transcript produced one or more complaints.
	Complained
	// Recovered means load_transcript_with_openings resolved every
	// outstanding complaint and the receiver's share is stored.
	Recovered
	// Active means the transcript is in the set retain_active_transcripts
	// was last called with, and its key material is retained.
	Active
	// Retired is terminal: retain_active_transcripts pruned this
	// transcript's key material.
	Retired
	// Failed is terminal: assembly hit InvalidTranscript or
	// InvalidMultisignature and this transcript can never become Active.
	Failed
)

func (s TranscriptStatus) String() string {
	switch s {
	case Announced:
		return "Announced"
	case Dealt:
		return "Dealt"
	case Assembled:
		return "Assembled"
	case Loaded:
		return "Loaded"
	case Complained:
		return "Complained"
	case Recovered:
		return "Recovered"
	case Active:
		return "Active"
	case Retired:
		return "Retired"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// isValidStateChange is the transition table: every (current, next) pair the
// state machine accepts. Anything absent is rejected with
// ErrInvalidStateTransition.
func isValidStateChange(current, next TranscriptStatus) bool {
	if current == next {
		return false
	}

	switch current {
	case Announced:
		switch next {
		case Dealt, Assembled, Failed:
			return true
		}
	case Dealt:
		switch next {
		case Assembled, Failed:
			return true
		}
	case Assembled:
		switch next {
		case Loaded, Complained, Failed:
			return true
		}
	case Complained:
		switch next {
		case Recovered, Failed:
			return true
		}
	case Loaded:
		switch next {
		case Active:
			return true
		}
	case Recovered:
		switch next {
		case Active:
			return true
		}
	case Active:
		switch next {
		case Retired:
			return true
		}
	case Retired, Failed:
		// terminal
	}
	return false
}

// TranscriptState tracks one receiver's lifecycle for one transcript id,
// with clockwork.Clock injected so tests can assert on transition timing
// without depending on wall time.
type TranscriptState struct {
	TranscriptId TranscriptId
	Status       TranscriptStatus
	UpdatedAt    time.Time

	clock clockwork.Clock
}

// NewAnnouncedState starts a fresh per-transcript state machine in Announced.
func NewAnnouncedState(id TranscriptId, clock clockwork.Clock) *TranscriptState {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TranscriptState{TranscriptId: id, Status: Announced, UpdatedAt: clock.Now(), clock: clock}
}

func (s *TranscriptState) transition(next TranscriptStatus) error {
	if !isValidStateChange(s.Status, next) {
		return ErrInvalidStateTransition
	}
	s.Status = next
	s.UpdatedAt = s.clock.Now()
	return nil
}

// MarkDealt records that this node, as a dealer, has emitted its dealing.
func (s *TranscriptState) MarkDealt() error { return s.transition(Dealt) }

// MarkAssembled records that a Transcript object exists and verified.
func (s *TranscriptState) MarkAssembled() error { return s.transition(Assembled) }

// MarkLoaded records a clean load_transcript (no complaints).
func (s *TranscriptState) MarkLoaded() error { return s.transition(Loaded) }

// MarkComplained records that load_transcript produced complaints.
func (s *TranscriptState) MarkComplained() error { return s.transition(Complained) }

// MarkRecovered records that load_transcript_with_openings resolved every
// outstanding complaint.
func (s *TranscriptState) MarkRecovered() error { return s.transition(Recovered) }

// MarkActive records that retain_active_transcripts retained this
// transcript's key material.
func (s *TranscriptState) MarkActive() error { return s.transition(Active) }

// MarkRetired records that retain_active_transcripts pruned this
// transcript's key material.
func (s *TranscriptState) MarkRetired() error { return s.transition(Retired) }

// MarkFailed records a terminal assembly failure.
func (s *TranscriptState) MarkFailed() error { return s.transition(Failed) }

// IsTerminal reports whether no further transition is possible.
func (s *TranscriptState) IsTerminal() bool {
	return s.Status == Retired || s.Status == Failed
}
