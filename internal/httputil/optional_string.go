package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString keeps JSON merge-patch presence (RFC 7396) for a single
// string field such as a node's parent_id:
//   - Present=false: field absent, leave unchanged
//   - Present=true, Value=nil: explicit null (root level for parent_id)
//   - Present=true, Value=&s: set to s
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON only runs for fields present in the payload
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// IsNull reports an explicit JSON null
func (o OptionalString) IsNull() bool {
	return o.Present && o.Value == nil
}

// Or returns the value when set, fallback otherwise (absent or null)
func (o OptionalString) Or(fallback string) string {
	if o.Value == nil {
		return fallback
	}
	return *o.Value
}
