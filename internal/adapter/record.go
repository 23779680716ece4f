package adapter

import "encoding/json"

// Status is the synchronization state a record carries in its _status
// field. The adapter persists and indexes it but never interprets it; the
// synchronization layer owns the transitions.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusDeleted Status = "deleted"
)

// Record is one stored document: a mandatory unique ID, two well-known
// optional bookkeeping fields, and whatever else the caller supplies in
// Extra. On the wire Extra is flattened next to the named fields, so the
// persisted form is a single flat JSON object.
type Record struct {
	ID           string
	Status       Status
	LastModified int64
	Extra        map[string]any
}

// MarshalJSON flattens Extra alongside id, _status and last_modified.
// Named fields win on key collisions.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["id"] = r.ID
	if r.Status != "" {
		m["_status"] = string(r.Status)
	}
	if r.LastModified != 0 {
		m["last_modified"] = r.LastModified
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits the well-known fields back out of the flat object.
// Extra stays nil when the document carries nothing beyond them.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*r = Record{}
	if id, ok := m["id"].(string); ok {
		r.ID = id
	}
	if s, ok := m["_status"].(string); ok {
		r.Status = Status(s)
	}
	if lm, ok := m["last_modified"].(float64); ok {
		r.LastModified = int64(lm)
	}
	delete(m, "id")
	delete(m, "_status")
	delete(m, "last_modified")
	if len(m) > 0 {
		r.Extra = m
	}
	return nil
}
