package model

import "sort"

// Declared certificate fields returned by the field extraction service
const (
	FieldName          = "name"
	FieldDegree        = "degree"
	FieldYear          = "year"
	FieldHonors        = "honors"
	FieldRollNumber    = "roll_number"
	FieldGrade         = "grade"
	FieldCertificateID = "certificate_id"
)

// FieldNames is the fixed, ordered set of declared certificate fields
var FieldNames = []string{
	FieldName,
	FieldDegree,
	FieldYear,
	FieldHonors,
	FieldRollNumber,
	FieldGrade,
	FieldCertificateID,
}

// IsDeclaredField reports whether key belongs to the declared field set
func IsDeclaredField(key string) bool {
	for _, name := range FieldNames {
		if name == key {
			return true
		}
	}
	return false
}

// FieldRecord maps field names to values. A nil value means the field was not found.
type FieldRecord map[string]*string

// NewFieldRecord returns a record with every declared field present and null
func NewFieldRecord() FieldRecord {
	record := make(FieldRecord, len(FieldNames))
	for _, name := range FieldNames {
		record[name] = nil
	}
	return record
}

// Keys returns the record's keys in sorted order
func (r FieldRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value for key, whether the value is non-null, and whether the key is present
func (r FieldRecord) Lookup(key string) (value string, ok bool, present bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", false, present
	}
	return *v, true, true
}

// Str returns a pointer to s, for building records in code
func Str(s string) *string {
	return &s
}

// KeyMode selects which keys a field comparison runs over
type KeyMode string

const (
	KeysFirst        KeyMode = "first"        // Keys of the first record only
	KeysUnion        KeyMode = "union"        // Keys present in either record
	KeysIntersection KeyMode = "intersection" // Keys present in both records
)

// FieldComparison is the per-key equality of two field records
type FieldComparison struct {
	Mode         KeyMode         `json:"mode"`
	Keys         []string        `json:"keys"`   // Compared keys, sorted
	Fields       map[string]bool `json:"fields"` // Per-key equality
	OverallMatch bool            `json:"overall_match"`
}

// Mismatched returns the keys that did not match, sorted
func (c FieldComparison) Mismatched() []string {
	var out []string
	for _, k := range c.Keys {
		if !c.Fields[k] {
			out = append(out, k)
		}
	}
	return out
}
