package compare

import (
	"fmt"
	"sort"

	"github.com/ppiankov/certverify/internal/model"
)

// ParseKeyMode parses a key mode name. The empty string selects KeysFirst.
func ParseKeyMode(s string) (model.KeyMode, error) {
	switch model.KeyMode(s) {
	case "", model.KeysFirst:
		return model.KeysFirst, nil
	case model.KeysUnion:
		return model.KeysUnion, nil
	case model.KeysIntersection:
		return model.KeysIntersection, nil
	default:
		return "", fmt.Errorf("unknown key mode %q (supported: first, union, intersection)", s)
	}
}

// Fields compares two field records key by key.
//
// Values are compared by exact string equality with no normalization. Two nulls
// are equal, null never equals a string (not even ""), and a key absent from
// either record is a mismatch. The mode selects the compared key set; with
// KeysFirst the comparison is asymmetric and extra keys of b are never looked at.
// An empty key set yields an overall match.
func Fields(a, b model.FieldRecord, mode model.KeyMode) model.FieldComparison {
	keys := keySet(a, b, mode)

	result := model.FieldComparison{
		Mode:         mode,
		Keys:         keys,
		Fields:       make(map[string]bool, len(keys)),
		OverallMatch: true,
	}

	for _, k := range keys {
		equal := valuesEqual(a, b, k)
		result.Fields[k] = equal
		if !equal {
			result.OverallMatch = false
		}
	}

	return result
}

// keySet returns the sorted keys to compare for the given mode
func keySet(a, b model.FieldRecord, mode model.KeyMode) []string {
	seen := make(map[string]bool)
	var keys []string

	switch mode {
	case model.KeysUnion:
		for k := range a {
			seen[k] = true
		}
		for k := range b {
			seen[k] = true
		}
	case model.KeysIntersection:
		for k := range a {
			if _, ok := b[k]; ok {
				seen[k] = true
			}
		}
	default:
		for k := range a {
			seen[k] = true
		}
	}

	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// valuesEqual compares one key across both records
func valuesEqual(a, b model.FieldRecord, key string) bool {
	av, aOK, aPresent := a.Lookup(key)
	bv, bOK, bPresent := b.Lookup(key)

	if !aPresent || !bPresent {
		return false
	}
	if aOK != bOK {
		return false
	}
	return av == bv
}
