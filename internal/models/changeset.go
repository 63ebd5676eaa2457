package models

// TicketChange is an updated ticket together with the values it replaced
type TicketChange struct {
	Ticket       Ticket `json:"ticket"`
	OldPriority  string `json:"old_priority"`
	OldSituation string `json:"old_situation"`
}

// ChangeSet is the result of reconciling stored tickets against a fresh crawl.
// Transient; never persisted.
type ChangeSet struct {
	New       []Ticket       `json:"new"`
	Updated   []TicketChange `json:"updated"`
	Unchanged []Ticket       `json:"unchanged"`
	Removed   []Ticket       `json:"removed"`
}

// Stats summarizes a changeset
func (c *ChangeSet) Stats() SyncStats {
	return SyncStats{
		Total:     len(c.New) + len(c.Updated) + len(c.Unchanged),
		New:       len(c.New),
		Updated:   len(c.Updated),
		Unchanged: len(c.Unchanged),
		Removed:   len(c.Removed),
	}
}

// SyncStats is the per-run outcome summary returned to callers
type SyncStats struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}
