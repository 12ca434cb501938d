package timeline

import "time"

func newRecord(at time.Time, by Actor, action ChangeAction) ChangeRecord {
	return ChangeRecord{Timestamp: at, Actor: by, Action: action}
}

func dateRecord(at time.Time, by Actor, action ChangeAction, from, to *DateFields) ChangeRecord {
	r := newRecord(at, by, action)
	r.From = from
	r.To = to
	return r
}

// appendRecord never rewrites earlier entries.
func (ev *VisaEvent) appendRecord(r ChangeRecord) {
	ev.History = append(ev.History, r)
}
