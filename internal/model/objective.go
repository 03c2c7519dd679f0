package model

type ObjectiveStatus string

const (
	ObjectiveStatusTBC     ObjectiveStatus = "tbc"
	ObjectiveStatusCurrent ObjectiveStatus = "current"
	ObjectiveStatusDone    ObjectiveStatus = "done"
)

// ObjectiveState tracks one objective's progress as reported by the model.
// Guidance is surfaced back to the model on the next turn; it never feeds
// completion logic.
type ObjectiveState struct {
	Status   ObjectiveStatus `json:"status"`
	Count    int             `json:"count"`
	Target   int             `json:"target"`
	Guidance string          `json:"guidance,omitempty"`
}

// ObjectiveProgress maps objective key to state. Invariants: done is sticky,
// and at most one objective is current at a time.
type ObjectiveProgress map[string]ObjectiveState

// AllDone reports whether every tracked objective has reached done.
// An empty map is not done: no evidence is not completion.
func (p ObjectiveProgress) AllDone() bool {
	if len(p) == 0 {
		return false
	}
	for _, st := range p {
		if st.Status != ObjectiveStatusDone {
			return false
		}
	}
	return true
}

// DoneCount returns how many objectives have reached done.
func (p ObjectiveProgress) DoneCount() int {
	n := 0
	for _, st := range p {
		if st.Status == ObjectiveStatusDone {
			n++
		}
	}
	return n
}

// Clone returns a deep copy. Map values are structs, so a key-wise copy is
// sufficient.
func (p ObjectiveProgress) Clone() ObjectiveProgress {
	if p == nil {
		return nil
	}
	out := make(ObjectiveProgress, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
