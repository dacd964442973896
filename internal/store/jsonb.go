package store

import "encoding/json"

// toJSONB marshals v for storage in a JSONB column. A nil interface value
// yields nil so the column stores SQL NULL; a typed nil pointer, map or
// slice marshals to the JSON literal null.
func toJSONB(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func fromJSONB(b []byte, out any) {
	if len(b) == 0 {
		return
	}
	_ = json.Unmarshal(b, out)
}
