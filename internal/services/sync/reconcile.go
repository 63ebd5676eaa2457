package sync

import (
	"strings"

	"github.com/ternarybob/vigilo/internal/models"
)

// Compare reconciles the stored tickets against a fresh portal snapshot.
// Pure and deterministic: no I/O, no clock, inputs are never mutated.
//
// Every fresh ticket lands in exactly one of New, Updated or Unchanged, and
// every stored ticket absent from the snapshot lands in Removed. A field only
// counts as changed when the stored value was non-empty; the first time a
// field is populated it is backfill, not a change worth reporting.
func Compare(existing, fresh []models.Ticket) models.ChangeSet {
	stored := make(map[string]models.Ticket, len(existing))
	for _, t := range existing {
		stored[t.TicketID] = t
	}

	var changes models.ChangeSet
	seen := make(map[string]struct{}, len(fresh))

	for _, f := range fresh {
		seen[f.TicketID] = struct{}{}

		old, ok := stored[f.TicketID]
		if !ok {
			changes.New = append(changes.New, f)
			continue
		}

		// The stored row keeps its original creation time
		f.CreatedAt = old.CreatedAt

		if fieldChanged(old.Priority, f.Priority) || fieldChanged(old.Situation, f.Situation) {
			changes.Updated = append(changes.Updated, models.TicketChange{
				Ticket:       f,
				OldPriority:  old.Priority,
				OldSituation: old.Situation,
			})
		} else {
			changes.Unchanged = append(changes.Unchanged, f)
		}
	}

	for _, t := range existing {
		if _, ok := seen[t.TicketID]; !ok {
			changes.Removed = append(changes.Removed, t)
		}
	}

	return changes
}

// fieldChanged compares two field values ignoring surrounding whitespace and
// case. A blank old value never counts as a change.
func fieldChanged(old, fresh string) bool {
	old = strings.TrimSpace(old)
	if old == "" {
		return false
	}
	return !strings.EqualFold(old, strings.TrimSpace(fresh))
}
