package models

// MapRow is an opaque document (user, post, business) keyed by field name.
// The document id is stored under "_id".
type MapRow map[string]any

func (r MapRow) Field(key string) any {
	return r[key]
}

// String returns the field as a string, or "" when absent or not a string.
func (r MapRow) String(key string) string {
	s, _ := r[key].(string)
	return s
}
