package model

import (
	"bytes"
	"encoding/json"
)

// YearEntry holds the PTO balance for one calendar year.
type YearEntry struct {
	Days float64 `json:"days"`
}

// Years maps a calendar year to its entry. It is sparse: a year exists only once written.
// encoding/json renders the int keys as strings ("2024").
type Years map[int]YearEntry

// SeedYears is the years value a record is created with.
func SeedYears(year int) Years {
	return Years{year: {Days: 0}}
}

// NameField distinguishes a name that was never written (Set=false) from one
// cleared to the null marker (Set=true, Value=nil).
type NameField struct {
	Set   bool
	Value *string
}

// NameOf returns a set name field holding v.
func NameOf(v string) NameField { return NameField{Set: true, Value: &v} }

// NullName returns the explicit null marker written by a name removal.
func NullName() NameField { return NameField{Set: true} }

// IsNull reports whether the field holds the null marker.
func (n NameField) IsNull() bool { return n.Set && n.Value == nil }

// PtoRecord is the persisted per-user paid-time-off document.
type PtoRecord struct {
	UID   string
	Name  NameField
	Years Years
}

// PtoCollection is the whole pto collection keyed by uid.
type PtoCollection map[string]PtoRecord

// MarshalJSON renders the document body: "name" is omitted when never set and
// encoded as null after removal.
func (r PtoRecord) MarshalJSON() ([]byte, error) {
	years := r.Years
	if years == nil {
		years = Years{}
	}
	doc := map[string]any{"years": years}
	if r.Name.Set {
		if r.Name.Value == nil {
			doc["name"] = nil
		} else {
			doc["name"] = *r.Name.Value
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON is the inverse of MarshalJSON. UID is left untouched.
func (r *PtoRecord) UnmarshalJSON(b []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	r.Years = Years{}
	if raw, ok := doc["years"]; ok && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &r.Years); err != nil {
			return err
		}
	}
	r.Name = NameField{}
	if raw, ok := doc["name"]; ok {
		r.Name.Set = true
		if !bytes.Equal(raw, []byte("null")) {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			r.Name.Value = &s
		}
	}
	return nil
}

// UnmarshalJSON decodes a collection and stamps each record with its key.
func (c *PtoCollection) UnmarshalJSON(b []byte) error {
	var raw map[string]PtoRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(PtoCollection, len(raw))
	for uid, rec := range raw {
		rec.UID = uid
		out[uid] = rec
	}
	*c = out
	return nil
}
