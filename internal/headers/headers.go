package headers

import "strings"

// Headers is a header map with case-insensitive keys. Keys are normalized
// to lowercase on every access, so callers may use any casing.
type Headers map[string]string

// NewHeaders creates an empty Headers map.
func NewHeaders() Headers {
	return make(Headers)
}

// Set stores value under the lowercased name. A duplicate key overwrites
// the previous value (last value wins).
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

// Get returns the value stored under the lowercased name, or "" if absent.
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Has reports whether a value is stored under the lowercased name.
func (h Headers) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Del removes the entry stored under the lowercased name.
func (h Headers) Del(name string) {
	delete(h, strings.ToLower(name))
}
