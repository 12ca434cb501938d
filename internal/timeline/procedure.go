package timeline

import (
	"context"
	"slices"
	"strings"
)

// ToggleProcedureStep flips stepID in the case's completed-step set. Empty
// ids and unknown cases are ignored.
func (s *Store) ToggleProcedureStep(ctx context.Context, caseID, stepID string) error {
	vid := strings.TrimSpace(caseID)
	sid := strings.TrimSpace(stepID)
	if vid == "" || sid == "" {
		return nil
	}
	return s.update(ctx, "toggle_procedure_step", func(tx *txn) (bool, error) {
		if tx.st.caseIndex(vid) < 0 {
			return false, nil
		}
		p := tx.st.Procedure[vid]
		if i := slices.Index(p.CompletedStepIDs, sid); i >= 0 {
			p.CompletedStepIDs = slices.Delete(p.CompletedStepIDs, i, i+1)
		} else {
			p.CompletedStepIDs = append(p.CompletedStepIDs, sid)
		}
		if p.CompletedStepIDs == nil {
			p.CompletedStepIDs = []string{}
		}
		p.UpdatedAt = tx.now
		tx.st.Procedure[vid] = p
		return true, nil
	})
}

// CompletedSteps returns the completed step ids of a case.
func (s *Store) CompletedSteps(caseID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Procedure[strings.TrimSpace(caseID)].CompletedStepIDs)
}
