package category

import "reflect"

// Record is the value form of a configured step: what the pipeline file stores and
// what a cache entry remembers as the settings that produced it.
type Record struct {
	Category   string                 `json:"category"`
	Algorithm  string                 `json:"algorithm"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Equal compares two records after numeric normalisation, so an int 5 and a JSON 5.0
// describe the same setting.
func (r Record) Equal(other Record) bool {
	if r.Category != other.Category || r.Algorithm != other.Algorithm {
		return false
	}
	if len(r.Parameters) != len(other.Parameters) {
		return false
	}
	for k, v := range r.Parameters {
		ov, ok := other.Parameters[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(numeric(v), numeric(ov)) {
			return false
		}
	}
	return true
}

func numeric(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
