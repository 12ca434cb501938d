package timeline

import (
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"slices"
)

// StorageKey is the versioned key the aggregate is persisted under.
const StorageKey = "visa.timeline.v1"

// NewState returns an empty aggregate. Silent mode starts enabled.
func NewState() *State {
	return &State{
		Visas:     []VisaCase{},
		Events:    []VisaEvent{},
		Pending:   []PendingDetection{},
		Procedure: map[string]ProcedureProgress{},
		Settings:  Settings{SilentMode: true},
	}
}

// Encode serializes the aggregate.
func Encode(st *State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// Decode parses a stored aggregate. A top-level field that does not have
// the expected shape is replaced by its empty value instead of failing the
// whole load; only a payload that is not a JSON object is an error.
func Decode(data []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	st := NewState()
	decodeField(raw, "visas", &st.Visas)
	decodeField(raw, "events", &st.Events)
	decodeField(raw, "pending", &st.Pending)
	decodeField(raw, "procedure", &st.Procedure)

	var settings struct {
		SilentMode *bool `json:"silentMode"`
	}
	decodeField(raw, "settings", &settings)
	st.Settings.SilentMode = settings.SilentMode == nil || *settings.SilentMode

	st.normalize()
	return st, nil
}

func decodeField[T any](raw map[string]json.RawMessage, name string, dst *T) {
	v, ok := raw[name]
	if !ok || string(v) == "null" {
		return
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		log.Printf("[timeline] Warning: dropping malformed %q in stored state: %v", name, err)
		return
	}
	*dst = out
}

// normalize replaces nil collections so the aggregate always encodes with
// every key present.
func (st *State) normalize() {
	if st.Visas == nil {
		st.Visas = []VisaCase{}
	}
	if st.Events == nil {
		st.Events = []VisaEvent{}
	}
	if st.Pending == nil {
		st.Pending = []PendingDetection{}
	}
	if st.Procedure == nil {
		st.Procedure = map[string]ProcedureProgress{}
	}
	for i := range st.Events {
		if st.Events[i].History == nil {
			st.Events[i].History = []ChangeRecord{}
		}
		if st.Events[i].Reminders == nil {
			st.Events[i].Reminders = []Reminder{}
		}
	}
	for id, p := range st.Procedure {
		if p.CompletedStepIDs == nil {
			p.CompletedStepIDs = []string{}
			st.Procedure[id] = p
		}
	}
}

// Clone returns a deep copy. Meta maps are copied one level deep.
func (st *State) Clone() *State {
	next := &State{
		Visas:     slices.Clone(st.Visas),
		Events:    make([]VisaEvent, len(st.Events)),
		Pending:   slices.Clone(st.Pending),
		Procedure: make(map[string]ProcedureProgress, len(st.Procedure)),
		Settings:  st.Settings,
	}
	for i, ev := range st.Events {
		next.Events[i] = ev.clone()
	}
	for id, p := range st.Procedure {
		p.CompletedStepIDs = slices.Clone(p.CompletedStepIDs)
		next.Procedure[id] = p
	}
	next.normalize()
	return next
}

func (ev VisaEvent) clone() VisaEvent {
	ev.Meta = maps.Clone(ev.Meta)
	ev.Reminders = slices.Clone(ev.Reminders)
	history := make([]ChangeRecord, len(ev.History))
	for i, r := range ev.History {
		if r.From != nil {
			from := *r.From
			r.From = &from
		}
		if r.To != nil {
			to := *r.To
			r.To = &to
		}
		history[i] = r
	}
	ev.History = history
	return ev
}

func (st *State) caseIndex(id string) int {
	return slices.IndexFunc(st.Visas, func(c VisaCase) bool { return c.ID == id })
}

func (st *State) eventIndex(id string) int {
	return slices.IndexFunc(st.Events, func(e VisaEvent) bool { return e.ID == id })
}

func (st *State) pendingIndex(id string) int {
	return slices.IndexFunc(st.Pending, func(p PendingDetection) bool { return p.ID == id })
}
