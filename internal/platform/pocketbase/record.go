package pocketbase

import "encoding/json"

// Record is a single record returned by the store. Field access is typed here,
// at the adapter boundary; callers map records into their own domain structs.
type Record struct {
	ID      string
	Created string
	Updated string

	fields map[string]json.RawMessage
	expand map[string]json.RawMessage
}

// UnmarshalJSON splits the wire shape into identity, expand tree and plain fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["id"]; ok {
		_ = json.Unmarshal(v, &r.ID)
		delete(raw, "id")
	}
	if v, ok := raw["created"]; ok {
		_ = json.Unmarshal(v, &r.Created)
		delete(raw, "created")
	}
	if v, ok := raw["updated"]; ok {
		_ = json.Unmarshal(v, &r.Updated)
		delete(raw, "updated")
	}
	if v, ok := raw["expand"]; ok {
		expand := map[string]json.RawMessage{}
		if err := json.Unmarshal(v, &expand); err == nil {
			r.expand = expand
		}
		delete(raw, "expand")
	}
	r.fields = raw
	return nil
}

// String returns the named field as a string, or "" when absent or mistyped.
func (r Record) String(key string) string {
	var s string
	if raw, ok := r.fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Int returns the named field as an int. The store serialises all numbers as
// JSON numbers, so fractional values are truncated.
func (r Record) Int(key string) int {
	return int(r.Float(key))
}

// Float returns the named field as a float64, or 0 when absent or mistyped.
func (r Record) Float(key string) float64 {
	var f float64
	if raw, ok := r.fields[key]; ok {
		_ = json.Unmarshal(raw, &f)
	}
	return f
}

// Expand returns the expanded relation record for key. Single-relation expands
// arrive as an object, multi-relation ones as an array; the first entry wins.
func (r Record) Expand(key string) (Record, bool) {
	raw, ok := r.expand[key]
	if !ok || len(raw) == 0 {
		return Record{}, false
	}
	switch raw[0] {
	case '{':
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, false
		}
		return rec, true
	case '[':
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil || len(recs) == 0 {
			return Record{}, false
		}
		return recs[0], true
	}
	return Record{}, false
}
