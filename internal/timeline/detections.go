package timeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Action is the user's decision on a pending detection.
type Action string

const (
	// ActionSave trusts the detected date as-is.
	ActionSave Action = "save"
	// ActionEdit trusts type and title but overrides the date.
	ActionEdit Action = "edit"
	// ActionIgnore discards the detection.
	ActionIgnore Action = "ignore"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionSave, ActionEdit, ActionIgnore:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action: %q (use save, edit or ignore)", s)
	}
}

// Detection is an extractor candidate tied to a case.
type Detection struct {
	VisaID string
	Type   EventType
	Title  string
	DateFields
	Snippet    string
	Confidence float64
	SourceURL  string
}

// AddPendingDetection queues a candidate. Nothing is scheduled until the
// detection is resolved. It returns an empty id without changing anything
// when the case does not exist.
func (s *Store) AddPendingDetection(ctx context.Context, d Detection) (string, error) {
	var id string
	err := s.update(ctx, "add_pending_detection", func(tx *txn) (bool, error) {
		if tx.st.caseIndex(d.VisaID) < 0 {
			return false, nil
		}
		id = newID("det")
		det := PendingDetection{
			ID:         id,
			VisaID:     d.VisaID,
			Type:       coerceType(d.Type),
			Title:      d.Title,
			DateFields: d.DateFields,
			Snippet:    d.Snippet,
			Confidence: d.Confidence,
			SourceURL:  d.SourceURL,
			DetectedAt: tx.now,
		}
		tx.st.Pending = append([]PendingDetection{det}, tx.st.Pending...)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ResolvePendingDetection applies the confirmation decision. Ignore drops
// the detection. Save and edit replace it with a confirmed, detected event
// in the same persisted change, using the detected dates or the edited
// ones. An unknown id is a no-op.
func (s *Store) ResolvePendingDetection(ctx context.Context, id string, action Action, edited *DateFields) error {
	action, err := ParseAction(string(action))
	if err != nil {
		return err
	}
	return s.update(ctx, "resolve_pending_detection", func(tx *txn) (bool, error) {
		i := tx.st.pendingIndex(id)
		if i < 0 {
			return false, nil
		}
		target := tx.st.Pending[i]
		tx.st.Pending = slices.Delete(tx.st.Pending, i, i+1)

		if action == ActionIgnore {
			return true, nil
		}

		dates := target.DateFields
		if action == ActionEdit {
			dates = DateFields{}
			if edited != nil {
				dates = *edited
			}
		}
		tx.addEvent(newEvent{
			visaID:    target.VisaID,
			typ:       target.Type,
			title:     target.Title,
			dates:     dates,
			source:    SourceDetected,
			sourceURL: target.SourceURL,
			confirmed: true,
			by:        ActorSystem,
		})
		return true, nil
	})
}

// Pending returns the queued detections, newest first.
func (s *Store) Pending() []PendingDetection {
	return s.State().Pending
}

// PendingDetection returns one queued detection.
func (s *Store) PendingDetection(id string) (PendingDetection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.state.pendingIndex(id); i >= 0 {
		return s.state.Pending[i], true
	}
	return PendingDetection{}, false
}
