package timeline

import (
	"context"
	"strings"
)

// UpsertCase finds the case with the same lower-cased (country, visaType)
// key and merges the optional fields into it, or creates a new case. It
// always returns a usable identifier unless persisting fails.
func (s *Store) UpsertCase(ctx context.Context, country, visaType, objective string, stage Stage) (string, error) {
	c := strings.ToLower(strings.TrimSpace(country))
	v := strings.TrimSpace(visaType)
	if c == "" {
		c = "unknown"
	}
	if v == "" {
		v = "unknown"
	}
	key := caseKey(c, v)

	var id string
	err := s.update(ctx, "upsert_case", func(tx *txn) (bool, error) {
		for i, existing := range tx.st.Visas {
			if existing.Key() != key {
				continue
			}
			if objective != "" {
				existing.Objective = objective
			}
			if stage != "" {
				existing.Stage = stage
			}
			existing.UpdatedAt = tx.now
			tx.st.Visas[i] = existing
			id = existing.ID
			return true, nil
		}

		id = newID("visa")
		created := VisaCase{
			ID:        id,
			Country:   c,
			VisaType:  v,
			Objective: objective,
			Stage:     stage,
			CreatedAt: tx.now,
			UpdatedAt: tx.now,
		}
		tx.st.Visas = append([]VisaCase{created}, tx.st.Visas...)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Case returns the case with the given id.
func (s *Store) Case(id string) (VisaCase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.state.caseIndex(id); i >= 0 {
		return s.state.Visas[i], true
	}
	return VisaCase{}, false
}

// Cases returns every case, newest first.
func (s *Store) Cases() []VisaCase {
	return s.State().Visas
}
