package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the orchestration state of a tab.
type Status string

const (
	StatusIdle      Status = "idle"      // No tutorial in this tab
	StatusRunning   Status = "running"   // Showing or resolving the current step
	StatusSuspended Status = "suspended" // Navigation in progress, session kept in storage
	StatusCompleted Status = "completed" // Last step advanced, storage cleared
)

// Persisted record field names. They are the only durable state of a tutorial.
const (
	FieldTutorialSteps    = "tutorialSteps"
	FieldCurrentStepIndex = "currentStepIndex"
)

// Session is the tutorial owned by the orchestrator of one tab.
// Invariant: 0 <= CurrentIndex <= len(Steps); CurrentIndex == len(Steps) means completed.
type Session struct {
	Steps        []Step
	CurrentIndex int
}

// NewSession creates a session positioned at the first step.
// Steps are re-indexed and stripped of any resolution data.
func NewSession(steps []Step) *Session {
	s := &Session{Steps: make([]Step, len(steps))}
	for i, step := range steps {
		step = step.Unresolved()
		step.Index = i
		s.Steps[i] = step
	}
	return s
}

// Completed reports whether every step has been advanced.
func (s *Session) Completed() bool {
	return s.CurrentIndex >= len(s.Steps)
}

// Current returns the step at the current index.
func (s *Session) Current() (Step, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Steps) {
		return Step{}, false
	}
	return s.Steps[s.CurrentIndex], true
}

// Advance moves to the next step. It returns true when the session is completed
// afterwards. Advancing a completed session is a no-op.
func (s *Session) Advance() bool {
	if s.CurrentIndex < len(s.Steps) {
		s.CurrentIndex++
	}
	return s.Completed()
}

// Validate checks the index invariant.
func (s *Session) Validate() error {
	if s.CurrentIndex < 0 || s.CurrentIndex > len(s.Steps) {
		return fmt.Errorf("%w: index %d outside [0,%d]", ErrSessionCorrupt, s.CurrentIndex, len(s.Steps))
	}
	return nil
}

// Snapshot returns a deep copy of the session.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	cp := &Session{CurrentIndex: s.CurrentIndex, Steps: make([]Step, len(s.Steps))}
	for i, step := range s.Steps {
		if step.Region != nil {
			r := *step.Region
			step.Region = &r
		}
		cp.Steps[i] = step
	}
	return cp
}

// SessionRecord is the durable form of a session.
// Pointer fields let decoders tell a missing field from a zero value.
type SessionRecord struct {
	TutorialSteps    *[]Step `json:"tutorialSteps"`
	CurrentStepIndex *int    `json:"currentStepIndex"`
}

// Record converts the session to its durable form. Resolution data is dropped.
func (s *Session) Record() SessionRecord {
	steps := make([]Step, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = step.Unresolved()
	}
	idx := s.CurrentIndex
	return SessionRecord{TutorialSteps: &steps, CurrentStepIndex: &idx}
}

// Session rebuilds a session from the record.
// Missing fields or an out-of-range index yield ErrSessionCorrupt.
func (r SessionRecord) Session() (*Session, error) {
	if r.TutorialSteps == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrSessionCorrupt, FieldTutorialSteps)
	}
	if r.CurrentStepIndex == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrSessionCorrupt, FieldCurrentStepIndex)
	}
	s := &Session{Steps: make([]Step, len(*r.TutorialSteps)), CurrentIndex: *r.CurrentStepIndex}
	for i, step := range *r.TutorialSteps {
		step = step.Unresolved()
		step.Index = i
		s.Steps[i] = step
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalSession encodes the durable record of a session as JSON.
func MarshalSession(s *Session) ([]byte, error) {
	data, err := json.Marshal(s.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// UnmarshalSession decodes a JSON record. Undecodable data is reported as corrupt.
func UnmarshalSession(data []byte) (*Session, error) {
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return rec.Session()
}
